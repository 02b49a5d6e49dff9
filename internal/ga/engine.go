package ga

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/timetable"
)

// State is the engine's lifecycle phase.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateRunning      State = "RUNNING"
	StateCheckpointed State = "CHECKPOINTED"
	StateDone         State = "DONE"
)

// Checkpointer persists run states. Storage mechanics live outside the engine.
type Checkpointer interface {
	SaveRunState(label string, state *RunState) error
}

// Options configures engine behavior outside the search parameters.
type Options struct {
	// SaveInterval emits a checkpoint every n generations (0 disables).
	SaveInterval int
	// SaveAtSteps emits a checkpoint when the generation counter reaches any listed value.
	SaveAtSteps []int
	// Workers bounds parallel fitness evaluation (0 = GOMAXPROCS, 1 = sequential).
	Workers int
	// LogEvery logs progress every n generations (0 = default of 10, < 0 disables).
	LogEvery     int
	Convergence  ConvergenceConfig
	Checkpointer Checkpointer
	Observer     Observer
}

// EvolveOptions are per-call run parameters.
type EvolveOptions struct {
	// InitialSolution seeds a fresh population around a known timetable.
	InitialSolution *timetable.Timetable
	// Partial seeds a fresh population by completing a partial schedule.
	Partial timetable.Schedule
	// StartGeneration overrides the generation counter. 0 keeps the current one.
	StartGeneration int
	// MaxGenerations is the generation count at which the run ends (0 = num_generations).
	MaxGenerations int
	// SaveBest checkpoints whenever best fitness strictly improves.
	SaveBest bool
}

// Engine runs the generational loop for one problem. It is not safe for
// concurrent use.
type Engine struct {
	cfg     Config
	problem Problem
	opts    Options
	rng     *rand.Rand

	init  *Initializer
	model *fitness.Model

	population []*timetable.Timetable
	scores     []float64
	generation int
	state      State
}

// NewEngine validates cfg and problem and creates an engine. A nil rng uses a
// time-seeded source.
func NewEngine(cfg Config, problem Problem, rng *rand.Rand, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.LogEvery == 0 {
		opts.LogEvery = 10
	}

	e := &Engine{
		cfg:     cfg,
		problem: problem,
		opts:    opts,
		rng:     rng,
		state:   StateInitializing,
	}
	if err := e.rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineFromState creates an engine for the problem captured in state and
// restores it. rules selects the fitness rules (empty = defaults).
func NewEngineFromState(state *RunState, rules []fitness.RuleSpec, rng *rand.Rand, opts Options) (*Engine, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run state: %w", err)
	}
	problem := state.Problem()
	problem.Rules = rules
	e, err := NewEngine(state.Config, problem, rng, opts)
	if err != nil {
		return nil, err
	}
	if err := e.LoadState(state); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) rebuild() error {
	model, err := e.problem.Model()
	if err != nil {
		return &ValidationError{Field: "rules", Reason: err.Error()}
	}
	e.model = model
	e.init = NewInitializer(e.problem.Subjects, e.problem.Days, e.problem.TimeSlots, e.problem.Preferences, e.rng)
	return nil
}

// Config returns the active search parameters.
func (e *Engine) Config() Config { return e.cfg }

// Problem returns the active problem.
func (e *Engine) Problem() Problem { return e.problem }

// Model returns the fitness model.
func (e *Engine) Model() *fitness.Model { return e.model }

// Generation returns the number of completed generations.
func (e *Engine) Generation() int { return e.generation }

// State returns the lifecycle phase.
func (e *Engine) State() State { return e.state }

// Population returns the current population. Callers must not modify it.
func (e *Engine) Population() []*timetable.Timetable { return e.population }

// Best returns a copy of the best individual in the current population and
// its fitness, or nil if there is no population yet.
func (e *Engine) Best() (*timetable.Timetable, float64) {
	idx := e.bestIndex()
	if idx < 0 {
		return nil, math.Inf(-1)
	}
	return e.population[idx].Clone(), e.scores[idx]
}

func (e *Engine) bestIndex() int {
	if len(e.population) == 0 || len(e.scores) != len(e.population) {
		return -1
	}
	best := 0
	for i, s := range e.scores {
		if s > e.scores[best] {
			best = i
		}
	}
	return best
}

// Evolve runs generations until the counter reaches the end bound and
// returns the best individual of the final generation. Without a seed or
// partial schedule, an existing population (for example one restored by
// LoadState) is continued; otherwise a fresh one is built. ctx is checked
// between generations only.
func (e *Engine) Evolve(ctx context.Context, opts EvolveOptions) (*timetable.Timetable, error) {
	e.state = StateInitializing

	reinit, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	if reinit || opts.StartGeneration > 0 {
		e.generation = opts.StartGeneration
	}
	if len(e.scores) != len(e.population) {
		if e.scores, err = e.model.EvaluateAll(ctx, e.population, e.opts.Workers); err != nil {
			return nil, err
		}
	}

	end := opts.MaxGenerations
	if end <= 0 {
		end = e.cfg.NumGenerations
	}
	start := e.generation

	highest := math.Inf(-1)
	if idx := e.bestIndex(); idx >= 0 {
		highest = e.scores[idx]
	}
	tracker := NewConvergenceTracker(e.opts.Convergence)

	slog.Info("Starting evolution",
		"start_generation", start,
		"end_generation", end,
		"population_size", e.cfg.PopulationSize,
		"seeded", opts.InitialSolution != nil,
	)

	e.state = StateRunning
	for g := start; g < end; g++ {
		if err := ctx.Err(); err != nil {
			slog.Info("Evolution stopped", "generation", e.generation, "reason", err)
			best, _ := e.Best()
			return best, err
		}

		rate := AdaptiveMutationRate(g, end, e.cfg.InitialMutationRate, e.cfg.FinalMutationRate)
		next, accepted, err := e.step(rate)
		if err != nil {
			return nil, err
		}
		scores, err := e.model.EvaluateAll(ctx, next, e.opts.Workers)
		if err != nil {
			best, _ := e.Best()
			return best, err
		}
		e.population = next
		e.scores = scores
		e.generation = g + 1

		stats := computeStats(e.population, e.scores)
		stats.Generation = e.generation
		stats.MutationRate = rate
		stats.EliteAccepted = accepted
		if e.opts.Observer != nil {
			e.opts.Observer.ObserveGeneration(stats)
		}
		if e.opts.LogEvery > 0 && g%e.opts.LogEvery == 0 {
			slog.Info("Generation complete",
				"generation", e.generation,
				"best_fitness", stats.BestFitness,
				"avg_diversity", stats.AvgSelfDiversity,
				"mutation_rate", rate,
			)
		}

		e.emitCheckpoints(opts.SaveBest, stats.BestFitness, &highest)

		if tracker.Update(stats.BestFitness) {
			break
		}
	}

	e.state = StateDone
	best, fit := e.Best()
	slog.Info("Evolution finished", "generation", e.generation, "best_fitness", fit)
	return best, nil
}

// prepare sets up the population for Evolve and reports whether it was built fresh.
func (e *Engine) prepare(opts EvolveOptions) (bool, error) {
	size := e.cfg.PopulationSize
	switch {
	case opts.InitialSolution != nil:
		if !timetable.IsValid(opts.InitialSolution, e.problem.Subjects, e.problem.TimeSlots) {
			return false, &ValidationError{Field: "initial_solution", Reason: "is not a valid timetable for this problem"}
		}
		if !sameDays(opts.InitialSolution.Days(), e.problem.Days) {
			return false, &ValidationError{
				Field:  "initial_solution",
				Reason: fmt.Sprintf("days %v do not match problem days %v", opts.InitialSolution.Days(), e.problem.Days),
			}
		}
		seed := timetable.FromSchedule(e.problem.Days, e.problem.TimeSlots, opts.InitialSolution.Schedule())
		pop, err := e.init.InitializePopulationWithSeed(size, seed)
		if err != nil {
			return false, err
		}
		e.setPopulation(pop)
		return true, nil

	case opts.Partial != nil:
		pop := make([]*timetable.Timetable, 0, size)
		for len(pop) < size {
			ind, err := e.init.CompletePartial(opts.Partial)
			if err != nil {
				return false, err
			}
			pop = append(pop, ind)
		}
		e.setPopulation(pop)
		return true, nil

	case len(e.population) == 0:
		e.setPopulation(e.init.InitializePopulation(size, e.cfg.InitialPreferenceAdherentPercentage))
		return true, nil
	}
	return false, nil
}

func (e *Engine) setPopulation(pop []*timetable.Timetable) {
	e.population = pop
	e.scores = nil
}

// step builds the next generation from the current scored population.
func (e *Engine) step(rate float64) ([]*timetable.Timetable, int, error) {
	size := e.cfg.PopulationSize

	scoreOf := make(map[*timetable.Timetable]float64, len(e.population))
	for i, ind := range e.population {
		scoreOf[ind] = e.scores[i]
	}
	fitnessFn := func(t *timetable.Timetable) float64 { return scoreOf[t] }

	elites, accepted := SelectElite(e.population, e.scores, e.cfg.EliteSize(), e.cfg.DiversityThreshold)
	next := make([]*timetable.Timetable, 0, size+1)
	for _, elite := range elites {
		next = append(next, elite.Clone())
	}

	for len(next) < size {
		p1, err := TournamentSelect(e.rng, e.population, fitnessFn, e.cfg.TournamentSize, e.cfg.DiversityWeight)
		if err != nil {
			return nil, 0, err
		}
		p2, err := TournamentSelect(e.rng, e.population, fitnessFn, e.cfg.TournamentSize, e.cfg.DiversityWeight)
		if err != nil {
			return nil, 0, err
		}
		c1, c2, err := Crossover(e.rng, p1, p2, e.problem.Days)
		if err != nil {
			return nil, 0, err
		}
		Mutate(e.rng, c1, e.problem.Subjects, rate)
		Mutate(e.rng, c2, e.problem.Subjects, rate)
		next = append(next, c1, c2)
	}
	return next[:size], accepted, nil
}

// emitCheckpoints writes interval, explicit-step, and best-improvement
// checkpoints for the generation just completed. Save failures are logged and
// the run continues.
func (e *Engine) emitCheckpoints(saveBest bool, bestFitness float64, highest *float64) {
	n := e.generation
	scheduled := (e.opts.SaveInterval > 0 && n%e.opts.SaveInterval == 0) || slices.Contains(e.opts.SaveAtSteps, n)
	if scheduled {
		e.save(fmt.Sprintf("gen_%d", n))
	}
	if bestFitness > *highest {
		*highest = bestFitness
		if saveBest {
			e.save(fmt.Sprintf("best_gen_%d", n))
		}
	}
}

func (e *Engine) save(label string) {
	if _, err := e.Checkpoint(label); err != nil {
		slog.Error("Failed to save checkpoint", "label", label, "generation", e.generation, "error", err)
	}
}

// Checkpoint captures the current run state and hands it to the configured
// Checkpointer, if any.
func (e *Engine) Checkpoint(label string) (*RunState, error) {
	idx := e.bestIndex()
	if idx < 0 {
		return nil, &PreconditionError{Op: "checkpoint", Reason: "no evaluated population"}
	}

	state := &RunState{
		Generation:     e.generation,
		Config:         e.cfg,
		Subjects:       append([]string(nil), e.problem.Subjects...),
		Days:           append([]string(nil), e.problem.Days...),
		TimeSlots:      append([]string(nil), e.problem.TimeSlots...),
		Preferences:    e.problem.Preferences,
		BestIndividual: e.population[idx].Schedule(),
		Population:     make([]timetable.Schedule, len(e.population)),
	}
	for i, ind := range e.population {
		state.Population[i] = ind.Schedule()
	}

	// A checkpoint taken mid-run passes through CHECKPOINTED and resumes
	// RUNNING; one taken between runs stays CHECKPOINTED.
	if e.state == StateRunning {
		defer func() { e.state = StateRunning }()
	}
	e.state = StateCheckpointed

	if e.opts.Checkpointer != nil {
		if err := e.opts.Checkpointer.SaveRunState(label, state); err != nil {
			return state, fmt.Errorf("failed to save checkpoint %s: %w", label, err)
		}
		slog.Debug("Checkpoint saved", "label", label, "generation", e.generation)
	}
	return state, nil
}

// sameDays reports whether a and b name the same set of days.
func sameDays(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(b)
	for _, day := range a {
		if _, ok := set[day]; !ok {
			return false
		}
	}
	return true
}

// LoadState restores a run. The state must match the engine's problem in
// subjects, days, and time slots; config and preferences are taken from the
// state and the initializer and fitness model are rebuilt from them.
func (e *Engine) LoadState(state *RunState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid run state: %w", err)
	}
	if err := state.CheckCompatible(e.problem); err != nil {
		return err
	}

	rules := e.problem.Rules
	e.cfg = state.Config
	e.problem = state.Problem()
	e.problem.Rules = rules
	if err := e.rebuild(); err != nil {
		return err
	}

	pop := make([]*timetable.Timetable, len(state.Population))
	for i, sched := range state.Population {
		pop[i] = timetable.FromSchedule(state.Days, state.TimeSlots, sched)
	}
	scores, err := e.model.EvaluateAll(context.Background(), pop, e.opts.Workers)
	if err != nil {
		return err
	}
	e.population = pop
	e.scores = scores
	e.generation = state.Generation
	e.state = StateInitializing

	slog.Info("Run state restored",
		"generation", state.Generation,
		"population_size", len(pop),
	)
	return nil
}
