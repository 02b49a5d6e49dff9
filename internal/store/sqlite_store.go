package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps checkpoints in a single SQLite table. The full checkpoint
// is stored as a JSON payload next to a small info document used for listing.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createCheckpointTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Debug("SQLite store opened", "path", path)
	return &SQLiteStore{path: path, db: db}, nil
}

func createCheckpointTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			info BLOB NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS checkpoints_run_id ON checkpoints (run_id);
	`)
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is closed")
	}
	return s.db, nil
}

// SaveCheckpoint upserts the checkpoint stored under id.
func (s *SQLiteStore) SaveCheckpoint(id string, checkpoint *Checkpoint) error {
	if id == "" {
		return fmt.Errorf("checkpoint id cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	info, err := json.Marshal(checkpoint.ToInfo())
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint info: %w", err)
	}

	_, err = db.ExecContext(context.Background(), `
		INSERT INTO checkpoints (id, run_id, created_at, info, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			created_at = excluded.created_at,
			info = excluded.info,
			payload = excluded.payload
	`, id, checkpoint.RunID, checkpoint.Timestamp.UnixNano(), info, payload)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", id, err)
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint stored under id.
func (s *SQLiteStore) LoadCheckpoint(id string) (*Checkpoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(context.Background(), `SELECT payload FROM checkpoints WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

// ListCheckpoints returns metadata for all checkpoints, oldest first.
func (s *SQLiteStore) ListCheckpoints() ([]CheckpointInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(context.Background(), `SELECT info FROM checkpoints ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []CheckpointInfo{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint info: %w", err)
		}
		var info CheckpointInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			slog.Warn("Skipping unreadable checkpoint info", "error", err)
			continue
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return infos, nil
}

// DeleteCheckpoint removes the checkpoint stored under id.
func (s *SQLiteStore) DeleteCheckpoint(id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(context.Background(), `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Close closes the database. Further calls fail.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
