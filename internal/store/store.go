package store

// Store defines the interface for checkpoint persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if checkpoint doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveCheckpoint saves a checkpoint under id, overwriting any previous
	// checkpoint with the same id. Writes must be atomic: a failed save
	// never leaves a partially written checkpoint behind.
	SaveCheckpoint(id string, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint stored under id.
	// Returns ErrNotFound if no checkpoint exists for this id.
	LoadCheckpoint(id string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all available checkpoints,
	// oldest first. The returned slice may be empty.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint stored under id.
	// Returns ErrNotFound if no checkpoint exists for this id.
	DeleteCheckpoint(id string) error

	// Close releases the backend's resources.
	Close() error
}

// ErrNotFound is returned when a requested checkpoint does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "checkpoint not found: " + e.ID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
