package store

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/cwbudde/evotimetable/internal/ga"
)

// Checkpoint is a persisted run state plus the metadata needed to list and
// resume it without decoding the population.
type Checkpoint struct {
	// ID is the storage key, usually CheckpointID(RunID, Label)
	ID string `json:"id"`

	// RunID groups checkpoints written by the same run
	RunID string `json:"runId"`

	// Label names the trigger that produced the checkpoint (gen_10, best_gen_42, ...)
	Label string `json:"label"`

	// Generation is the number of completed generations at checkpoint time
	Generation int `json:"generation"`

	// BestFitness is the fitness of State.BestIndividual
	BestFitness float64 `json:"bestFitness"`

	Timestamp time.Time `json:"timestamp"`

	// State is the resumable run state
	State *ga.RunState `json:"state"`
}

// CheckpointInfo contains metadata about a checkpoint without the population.
type CheckpointInfo struct {
	ID             string    `json:"id"`
	RunID          string    `json:"runId"`
	Label          string    `json:"label"`
	Generation     int       `json:"generation"`
	BestFitness    float64   `json:"bestFitness"`
	Timestamp      time.Time `json:"timestamp"`
	Subjects       int       `json:"subjects"`
	Days           int       `json:"days"`
	TimeSlots      int       `json:"timeSlots"`
	PopulationSize int       `json:"populationSize"`
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CheckpointID builds the storage key for a run's labelled checkpoint.
func CheckpointID(runID, label string) string {
	return unsafeIDChars.ReplaceAllString(runID+"_"+label, "-")
}

// NewCheckpoint wraps a run state for persistence.
func NewCheckpoint(runID, label string, state *ga.RunState, bestFitness float64) *Checkpoint {
	if math.IsInf(bestFitness, 0) || math.IsNaN(bestFitness) {
		bestFitness = 0
	}
	return &Checkpoint{
		ID:          CheckpointID(runID, label),
		RunID:       runID,
		Label:       label,
		Generation:  state.Generation,
		BestFitness: bestFitness,
		Timestamp:   time.Now(),
		State:       state,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	info := CheckpointInfo{
		ID:          c.ID,
		RunID:       c.RunID,
		Label:       c.Label,
		Generation:  c.Generation,
		BestFitness: c.BestFitness,
		Timestamp:   c.Timestamp,
	}
	if c.State != nil {
		info.Subjects = len(c.State.Subjects)
		info.Days = len(c.State.Days)
		info.TimeSlots = len(c.State.TimeSlots)
		info.PopulationSize = len(c.State.Population)
	}
	return info
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.ID == "" {
		return &ga.ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if c.RunID == "" {
		return &ga.ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if c.Timestamp.IsZero() {
		return &ga.ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.State == nil {
		return &ga.ValidationError{Field: "State", Reason: "cannot be nil"}
	}
	if c.Generation != c.State.Generation {
		return &ga.ValidationError{Field: "Generation", Reason: "does not match state generation"}
	}
	return c.State.Validate()
}

// IsCompatible checks if this checkpoint can be resumed against problem.
func (c *Checkpoint) IsCompatible(problem ga.Problem) error {
	if c.State == nil {
		return &ga.ValidationError{Field: "State", Reason: "cannot be nil"}
	}
	return c.State.CheckCompatible(problem)
}

func sortInfos(infos []CheckpointInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})
}
