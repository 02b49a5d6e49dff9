// Package tune searches GA hyper-parameters by running short, seeded
// evolutions of a problem and letting a metaheuristic minimize the negated
// best fitness.
package tune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cwbudde/evotimetable/internal/ga"
)

// Dimensions of the search space, each encoded in [0,1]:
// initial mutation rate, final mutation rate, diversity weight (scaled by
// Options.MaxDiversityWeight) and diversity threshold.
const Dimensions = 4

// failedCost is returned for parameter vectors that cannot be evaluated.
const failedCost = 1e12

// Options controls the tuning budget.
type Options struct {
	// Iterations of the outer optimizer.
	Iterations int
	// PopSize of the outer optimizer (at least MinMayflyPopulation).
	PopSize int
	// Seed drives both the optimizer and the trial runs.
	Seed int64
	// Generations per trial run.
	Generations int
	// Population per trial run (0 keeps the base config's).
	Population int
	// Trials is the number of differently seeded runs averaged per candidate.
	Trials int
	// MaxDiversityWeight is the value a diversity_weight gene of 1 maps to.
	MaxDiversityWeight float64
}

// DefaultOptions returns a budget suitable for small problems.
func DefaultOptions() Options {
	return Options{
		Iterations:         20,
		PopSize:            MinMayflyPopulation,
		Seed:               1,
		Generations:        50,
		Trials:             2,
		MaxDiversityWeight: 5,
	}
}

// Result is the outcome of a tuning run.
type Result struct {
	Config      ga.Config     `json:"config"`
	Fitness     float64       `json:"fitness"`
	Evaluations int64         `json:"evaluations"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Decode maps a point of [0,1]^4 onto base. Values outside [0,1] are clamped.
// The final mutation rate is encoded as a fraction of the initial rate so
// every decoded config anneals downward.
func Decode(base ga.Config, x []float64, maxDiversityWeight float64) ga.Config {
	cfg := base
	cfg.InitialMutationRate = clamp01(x[0])
	cfg.FinalMutationRate = cfg.InitialMutationRate * clamp01(x[1])
	cfg.DiversityWeight = clamp01(x[2]) * maxDiversityWeight
	cfg.DiversityThreshold = clamp01(x[3])
	return cfg
}

// Encode is the inverse of Decode for in-range configs.
func Encode(cfg ga.Config, maxDiversityWeight float64) []float64 {
	weight := 0.0
	if maxDiversityWeight > 0 {
		weight = clamp01(cfg.DiversityWeight / maxDiversityWeight)
	}
	ratio := 0.0
	if cfg.InitialMutationRate > 0 {
		ratio = clamp01(cfg.FinalMutationRate / cfg.InitialMutationRate)
	}
	return []float64{
		clamp01(cfg.InitialMutationRate),
		ratio,
		weight,
		clamp01(cfg.DiversityThreshold),
	}
}

// Tuner evaluates candidate configs on one problem.
type Tuner struct {
	base    ga.Config
	problem ga.Problem
	opts    Options
	opt     Optimizer

	evaluations atomic.Int64
}

// New validates its inputs and creates a tuner backed by the Mayfly optimizer.
func New(base ga.Config, problem ga.Problem, opts Options) (*Tuner, error) {
	if opts.Iterations < 1 {
		return nil, &ga.ValidationError{Field: "iterations", Reason: "must be >= 1"}
	}
	if opts.Generations < 1 {
		return nil, &ga.ValidationError{Field: "generations", Reason: "must be >= 1"}
	}
	if opts.Trials < 1 {
		opts.Trials = 1
	}
	if opts.MaxDiversityWeight <= 0 {
		opts.MaxDiversityWeight = DefaultOptions().MaxDiversityWeight
	}
	if opts.Population > 0 {
		base.PopulationSize = opts.Population
		if base.TournamentSize > base.PopulationSize {
			base.TournamentSize = base.PopulationSize
		}
	}
	base.NumGenerations = opts.Generations

	if err := base.Validate(); err != nil {
		return nil, err
	}
	if err := problem.Validate(); err != nil {
		return nil, err
	}

	return &Tuner{
		base:    base,
		problem: problem,
		opts:    opts,
		opt:     NewMayfly(opts.Iterations, opts.PopSize, opts.Seed),
	}, nil
}

// Run searches for the config with the highest mean best fitness. The outer
// optimizer cannot be interrupted; once ctx is done every remaining
// candidate is scored as failed and Run returns ctx's error.
func (t *Tuner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	slog.Info("Starting tuning",
		"iterations", t.opts.Iterations,
		"trials", t.opts.Trials,
		"generations", t.opts.Generations,
		"population_size", t.base.PopulationSize,
	)

	best, cost, err := t.opt.Run(func(x []float64) float64 {
		return t.cost(ctx, x)
	}, 0, 1, Dimensions)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Config:      Decode(t.base, best, t.opts.MaxDiversityWeight),
		Fitness:     -cost,
		Evaluations: t.evaluations.Load(),
		Elapsed:     time.Since(start),
	}
	slog.Info("Tuning finished",
		"fitness", result.Fitness,
		"evaluations", result.Evaluations,
		"initial_mutation_rate", result.Config.InitialMutationRate,
		"final_mutation_rate", result.Config.FinalMutationRate,
		"diversity_weight", result.Config.DiversityWeight,
		"diversity_threshold", result.Config.DiversityThreshold,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Evaluate returns the mean best fitness of cfg over the configured trials.
func (t *Tuner) Evaluate(ctx context.Context, cfg ga.Config) (float64, error) {
	var sum float64
	for trial := 0; trial < t.opts.Trials; trial++ {
		rng := rand.New(rand.NewSource(t.opts.Seed + int64(trial)))
		engine, err := ga.NewEngine(cfg, t.problem, rng, ga.Options{Workers: 1, LogEvery: -1})
		if err != nil {
			return 0, err
		}
		if _, err := engine.Evolve(ctx, ga.EvolveOptions{}); err != nil {
			return 0, fmt.Errorf("trial %d: %w", trial, err)
		}
		_, fitness := engine.Best()
		sum += fitness
	}
	return sum / float64(t.opts.Trials), nil
}

func (t *Tuner) cost(ctx context.Context, x []float64) float64 {
	if ctx.Err() != nil {
		return failedCost
	}
	t.evaluations.Add(1)

	cfg := Decode(t.base, x, t.opts.MaxDiversityWeight)
	fitness, err := t.Evaluate(ctx, cfg)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Candidate evaluation failed", "error", err)
		}
		return failedCost
	}
	if math.IsInf(fitness, 0) || math.IsNaN(fitness) {
		return failedCost
	}
	slog.Debug("Candidate evaluated", "params", x, "fitness", fitness)
	return -fitness
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
