package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when cancelling a job that already stopped.
	ErrJobFinished = errors.New("job already finished")
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobRequest is the body of POST /api/v1/jobs. Config fields left at zero are
// filled from the server defaults.
type JobRequest struct {
	Problem        ga.Problem `json:"problem"`
	Config         *ga.Config `json:"config,omitempty"`
	Seed           int64      `json:"seed"`
	MaxGenerations int        `json:"max_generations,omitempty"`
	SaveBest       bool       `json:"save_best"`
}

// Job represents a timetable search running on the server
type Job struct {
	ID          string             `json:"id"`
	State       JobState           `json:"state"`
	Problem     ga.Problem         `json:"problem"`
	Config      ga.Config          `json:"config"`
	Seed        int64              `json:"seed"`
	MaxGens     int                `json:"max_generations"`
	SaveBest    bool               `json:"save_best"`
	Generation  int                `json:"generation"`
	BestFitness float64            `json:"best_fitness"`
	MeanFitness float64            `json:"mean_fitness"`
	Diversity   float64            `json:"avg_diversity"`
	Best        timetable.Schedule `json:"best,omitempty"`
	Checkpoints []string           `json:"checkpoints,omitempty"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     *time.Time         `json:"end_time,omitempty"`
	Error       string             `json:"error,omitempty"`

	cancel context.CancelFunc
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for the given request. cfg must already
// be resolved against the server defaults.
func (jm *JobManager) CreateJob(req JobRequest, cfg ga.Config) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Problem:   req.Problem,
		Config:    cfg,
		Seed:      req.Seed,
		MaxGens:   req.MaxGenerations,
		SaveBest:  req.SaveBest,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a snapshot of the job with the given ID.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return job.snapshot(), true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}

// ActiveCount returns the number of jobs that are pending or running.
func (jm *JobManager) ActiveCount() int {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	n := 0
	for _, job := range jm.jobs {
		if !job.State.Terminal() {
			n++
		}
	}
	return n
}

// CancelJob asks a job to stop at its next generation boundary. Jobs that
// have not started yet are cancelled immediately.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, job.State)
	}
	if job.cancel != nil {
		job.cancel()
	}
	if job.State == StatePending {
		now := time.Now()
		job.State = StateCancelled
		job.EndTime = &now
	}
	return nil
}

// setCancel attaches the worker's cancel function to the job.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if job, ok := jm.jobs[id]; ok {
		job.cancel = cancel
	}
}

func (j *Job) snapshot() Job {
	c := *j
	c.cancel = nil
	c.Best = j.Best.Clone()
	c.Checkpoints = append([]string(nil), j.Checkpoints...)
	return c
}

// finite maps -Inf and NaN to 0 so values survive JSON encoding.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
