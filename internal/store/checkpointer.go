package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/ga"
)

// Checkpointer persists engine run states into a Store under
// CheckpointID(runID, label).
type Checkpointer struct {
	store Store
	runID string
	rules []fitness.RuleSpec

	mu    sync.Mutex
	saved []string
}

// NewCheckpointer creates a checkpointer for one run. rules must match the
// engine's fitness rules so the recorded best fitness agrees with the run.
func NewCheckpointer(s Store, runID string, rules []fitness.RuleSpec) *Checkpointer {
	return &Checkpointer{store: s, runID: runID, rules: rules}
}

// RunID returns the run the checkpoints belong to.
func (c *Checkpointer) RunID() string {
	return c.runID
}

// SaveRunState implements ga.Checkpointer.
func (c *Checkpointer) SaveRunState(label string, state *ga.RunState) error {
	model, err := fitness.NewModelFromSpecs(state.Subjects, state.TimeSlots, state.Preferences, c.rules)
	if err != nil {
		return fmt.Errorf("failed to build fitness model: %w", err)
	}

	checkpoint := NewCheckpoint(c.runID, label, state, model.Evaluate(state.Best()))
	if err := c.store.SaveCheckpoint(checkpoint.ID, checkpoint); err != nil {
		return err
	}

	c.mu.Lock()
	c.saved = append(c.saved, checkpoint.ID)
	c.mu.Unlock()

	slog.Info("Checkpoint written",
		"id", checkpoint.ID,
		"generation", checkpoint.Generation,
		"best_fitness", checkpoint.BestFitness,
	)
	return nil
}

// Saved returns the ids written so far, in order.
func (c *Checkpointer) Saved() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.saved...)
}
