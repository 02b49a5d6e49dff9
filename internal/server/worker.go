package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/cwbudde/evotimetable/internal/timetable"
)

// jobCheckpointer records checkpoints written for a job on top of the
// store-backed checkpointer.
type jobCheckpointer struct {
	inner   *store.Checkpointer
	jm      *JobManager
	metrics *metrics
	jobID   string
}

func (c *jobCheckpointer) SaveRunState(label string, state *ga.RunState) error {
	if err := c.inner.SaveRunState(label, state); err != nil {
		return err
	}
	c.metrics.checkpoints.Inc()
	id := store.CheckpointID(c.jobID, label)
	return c.jm.UpdateJob(c.jobID, func(j *Job) {
		j.Checkpoints = append(j.Checkpoints, id)
	})
}

// progressObserver mirrors every generation into the job record, the SSE
// broadcaster and the metrics.
type progressObserver struct {
	jm      *JobManager
	metrics *metrics
	jobID   string
	last    time.Time
}

func (o *progressObserver) ObserveGeneration(stats ga.GenerationStats) {
	event := eventFromStats(o.jobID, stats)

	_ = o.jm.UpdateJob(o.jobID, func(j *Job) {
		j.Generation = event.Generation
		j.BestFitness = event.BestFitness
		j.MeanFitness = event.MeanFitness
		j.Diversity = event.Diversity
	})
	o.jm.broadcaster.Broadcast(event)

	o.metrics.generations.Inc()
	o.metrics.bestFitness.WithLabelValues(o.jobID).Set(event.BestFitness)
	o.metrics.diversity.WithLabelValues(o.jobID).Set(event.Diversity)
	if !o.last.IsZero() {
		o.metrics.genDurations.Observe(stats.Timestamp.Sub(o.last).Seconds())
	}
	o.last = stats.Timestamp
}

// runJob executes a timetable search in the background. If checkpointStore is
// not nil, checkpoints are written according to evo. Cancelling ctx stops the
// run at the next generation boundary.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, m *metrics, evo ga.Options, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	started := false
	err := jm.UpdateJob(jobID, func(j *Job) {
		if j.State == StatePending {
			j.State = StateRunning
			started = true
		}
	})
	if err != nil {
		return err
	}
	if !started {
		slog.Info("Job cancelled before start", "job_id", jobID)
		finishJob(jm, m, jobID, StateCancelled, nil, 0, nil)
		return context.Canceled
	}

	m.activeJobs.Inc()
	defer m.activeJobs.Dec()

	slog.Info("Starting job",
		"job_id", jobID,
		"subjects", len(job.Problem.Subjects),
		"days", len(job.Problem.Days),
		"time_slots", len(job.Problem.TimeSlots),
		"population_size", job.Config.PopulationSize,
	)

	opts := evo
	opts.Observer = &progressObserver{jm: jm, metrics: m, jobID: jobID}
	opts.Checkpointer = nil
	if checkpointStore != nil {
		opts.Checkpointer = &jobCheckpointer{
			inner:   store.NewCheckpointer(checkpointStore, jobID, job.Problem.Rules),
			jm:      jm,
			metrics: m,
			jobID:   jobID,
		}
	}

	var rng *rand.Rand
	if job.Seed != 0 {
		rng = rand.New(rand.NewSource(job.Seed))
	}

	engine, err := ga.NewEngine(job.Config, job.Problem, rng, opts)
	if err != nil {
		finishJob(jm, m, jobID, StateFailed, nil, 0, err)
		return err
	}

	start := time.Now()
	best, err := engine.Evolve(ctx, ga.EvolveOptions{
		MaxGenerations: job.MaxGens,
		SaveBest:       job.SaveBest,
	})
	_, fitness := engine.Best()

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		slog.Info("Job cancelled", "job_id", jobID, "generation", engine.Generation())
		finishJob(jm, m, jobID, StateCancelled, best, fitness, nil)
		return err
	case err != nil:
		slog.Error("Job failed", "job_id", jobID, "error", err)
		finishJob(jm, m, jobID, StateFailed, best, fitness, err)
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", time.Since(start),
		"generation", engine.Generation(),
		"best_fitness", fitness,
	)
	finishJob(jm, m, jobID, StateCompleted, best, fitness, nil)
	return nil
}

// finishJob moves a job to a final state, records its result and closes
// its SSE streams.
func finishJob(jm *JobManager, m *metrics, jobID string, state JobState, best *timetable.Timetable, fitness float64, cause error) {
	m.jobsTotal.WithLabelValues(string(state)).Inc()
	m.forget(jobID)

	endTime := time.Now()
	var final Job
	_ = jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.EndTime = &endTime
		if best != nil {
			j.Best = best.Schedule()
			j.BestFitness = finite(fitness)
		}
		if cause != nil {
			j.Error = cause.Error()
		}
		j.cancel = nil
		final = j.snapshot()
	})

	jm.broadcaster.Broadcast(eventFromJob(final))
	jm.broadcaster.CleanupJob(jobID)
}
