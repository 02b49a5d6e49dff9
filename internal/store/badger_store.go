package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerCheckpointPrefix = "checkpoint/"
	badgerInfoPrefix       = "info/"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM, for tests and throwaway runs.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// BadgerStore keeps checkpoints in an embedded BadgerDB. Each checkpoint is
// written as two keys in one transaction: the full payload and its info.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB with the given configuration.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	slog.Debug("Badger store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

// SaveCheckpoint writes the checkpoint and its info atomically.
func (b *BadgerStore) SaveCheckpoint(id string, checkpoint *Checkpoint) error {
	if id == "" {
		return fmt.Errorf("checkpoint id cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	info, err := json.Marshal(checkpoint.ToInfo())
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint info: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerCheckpointPrefix+id), payload); err != nil {
			return err
		}
		return txn.Set([]byte(badgerInfoPrefix+id), info)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", id, err)
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint stored under id.
func (b *BadgerStore) LoadCheckpoint(id string) (*Checkpoint, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerCheckpointPrefix + id))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", id, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint %s: %w", id, err)
	}
	return &checkpoint, nil
}

// ListCheckpoints scans the info keys.
func (b *BadgerStore) ListCheckpoints() ([]CheckpointInfo, error) {
	infos := []CheckpointInfo{}
	prefix := []byte(badgerInfoPrefix)

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info CheckpointInfo
				if err := json.Unmarshal(val, &info); err != nil {
					slog.Warn("Skipping unreadable checkpoint info", "key", string(it.Item().Key()), "error", err)
					return nil
				}
				infos = append(infos, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	sortInfos(infos)
	return infos, nil
}

// DeleteCheckpoint removes both keys of the checkpoint stored under id.
func (b *BadgerStore) DeleteCheckpoint(id string) error {
	key := []byte(badgerCheckpointPrefix + id)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerInfoPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
