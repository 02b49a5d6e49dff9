package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Kind names a storage backend.
type Kind string

const (
	KindFS     Kind = "fs"
	KindMemory Kind = "memory"
	KindSQLite Kind = "sqlite"
	KindBadger Kind = "badger"
)

// Kinds lists the supported backends.
func Kinds() []Kind {
	return []Kind{KindFS, KindMemory, KindSQLite, KindBadger}
}

// NewStore opens a backend rooted at dataDir. The file store writes into
// dataDir directly; SQLite uses dataDir/checkpoints.db and Badger uses
// dataDir/badger.
func NewStore(ctx context.Context, kind Kind, dataDir string) (Store, error) {
	switch kind {
	case KindFS, "":
		return NewFSStore(dataDir)
	case KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return NewSQLiteStore(ctx, filepath.Join(dataDir, "checkpoints.db"))
	case KindBadger:
		return NewBadgerStore(BadgerConfig{Path: filepath.Join(dataDir, "badger"), SyncWrites: true})
	default:
		return nil, fmt.Errorf("unknown store kind %q (supported: %v)", kind, Kinds())
	}
}
