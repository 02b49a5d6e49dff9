package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Checkpoints are stored as <baseDir>/runs/<id>/checkpoint.json. Run traces
// share the same tree under <baseDir>/runs/<runID>/trace.jsonl.
//
// Thread-safety: This implementation uses atomic file operations (rename)
// and does not require locks.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) runsDir() string {
	return filepath.Join(fs.baseDir, "runs")
}

func (fs *FSStore) checkpointDir(id string) string {
	return filepath.Join(fs.runsDir(), id)
}

func (fs *FSStore) checkpointPath(id string) string {
	return filepath.Join(fs.checkpointDir(id), "checkpoint.json")
}

// SaveCheckpoint atomically saves a checkpoint.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveCheckpoint(id string, checkpoint *Checkpoint) error {
	if id == "" {
		return fmt.Errorf("checkpoint id cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	dir := fs.checkpointDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	finalPath := fs.checkpointPath(id)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("Checkpoint saved", "id", id, "path", finalPath)
	return nil
}

// LoadCheckpoint retrieves the checkpoint stored under id.
func (fs *FSStore) LoadCheckpoint(id string) (*Checkpoint, error) {
	if id == "" {
		return nil, fmt.Errorf("checkpoint id cannot be empty")
	}

	path := fs.checkpointPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	slog.Debug("Checkpoint loaded", "id", id, "path", path)
	return &checkpoint, nil
}

// ListCheckpoints returns metadata for all available checkpoints.
// Directories without a checkpoint.json and unreadable checkpoints are skipped.
func (fs *FSStore) ListCheckpoints() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(fs.runsDir())
	if os.IsNotExist(err) {
		return []CheckpointInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []CheckpointInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(fs.checkpointPath(id)); os.IsNotExist(err) {
			continue
		}
		checkpoint, err := fs.LoadCheckpoint(id)
		if err != nil {
			slog.Warn("Failed to load checkpoint for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}

	sortInfos(infos)
	slog.Debug("Listed checkpoints", "count", len(infos))
	return infos, nil
}

// DeleteCheckpoint removes the checkpoint file. The directory is removed too
// once nothing else (such as a trace) lives in it.
func (fs *FSStore) DeleteCheckpoint(id string) error {
	if id == "" {
		return fmt.Errorf("checkpoint id cannot be empty")
	}

	path := fs.checkpointPath(id)
	if err := os.Remove(path); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}

	// Only succeeds when the directory is empty.
	_ = os.Remove(fs.checkpointDir(id))

	slog.Debug("Checkpoint deleted", "id", id, "path", path)
	return nil
}

// Close is a no-op for the filesystem store.
func (fs *FSStore) Close() error {
	return nil
}
