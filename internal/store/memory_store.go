package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. Checkpoints are stored
// encoded so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string][]byte)}
}

// SaveCheckpoint stores a copy of checkpoint under id.
func (m *MemoryStore) SaveCheckpoint(id string, checkpoint *Checkpoint) error {
	if id == "" {
		return fmt.Errorf("checkpoint id cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[id] = data
	return nil
}

// LoadCheckpoint returns a copy of the checkpoint stored under id.
func (m *MemoryStore) LoadCheckpoint(id string) (*Checkpoint, error) {
	m.mu.RLock()
	data, ok := m.checkpoints[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// ListCheckpoints returns metadata for all stored checkpoints.
func (m *MemoryStore) ListCheckpoints() ([]CheckpointInfo, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	infos := make([]CheckpointInfo, 0, len(ids))
	for _, id := range ids {
		checkpoint, err := m.LoadCheckpoint(id)
		if err != nil {
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}
	sortInfos(infos)
	return infos, nil
}

// DeleteCheckpoint removes the checkpoint stored under id.
func (m *MemoryStore) DeleteCheckpoint(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checkpoints[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(m.checkpoints, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
