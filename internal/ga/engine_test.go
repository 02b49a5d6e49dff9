package ga

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

type memCheckpointer struct {
	labels []string
	states map[string]*RunState
	fail   bool
}

func (m *memCheckpointer) SaveRunState(label string, state *RunState) error {
	if m.fail {
		return errors.New("disk full")
	}
	if m.states == nil {
		m.states = map[string]*RunState{}
	}
	m.labels = append(m.labels, label)
	m.states[label] = state
	return nil
}

func testProblem() Problem {
	return Problem{
		Subjects:  append([]string(nil), testSubjects...),
		Days:      append([]string(nil), testDays...),
		TimeSlots: append([]string(nil), testSlots...),
		Preferences: timetable.Preferences{
			"Math": {"Mon": "s1"},
		},
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 12
	cfg.NumGenerations = 5
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, problem Problem, seed int64, opts Options) *Engine {
	t.Helper()
	opts.LogEvery = -1
	e, err := NewEngine(cfg, problem, rand.New(rand.NewSource(seed)), opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngine_SingleGenerationScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 4
	cfg.NumGenerations = 1
	problem := Problem{
		Subjects:  []string{"A", "B"},
		Days:      []string{"Day1"},
		TimeSlots: []string{"slot1", "slot2"},
	}
	e := newTestEngine(t, cfg, problem, 42, Options{})

	gen0 := e.init.InitializePopulation(cfg.PopulationSize, cfg.InitialPreferenceAdherentPercentage)
	allowed := map[string]bool{"A": true, "B": true, timetable.Free: true}
	check := func(pop []*timetable.Timetable) {
		t.Helper()
		if len(pop) != 4 {
			t.Fatalf("Expected 4 individuals, got %d", len(pop))
		}
		for i, ind := range pop {
			if !timetable.IsValid(ind, problem.Subjects, problem.TimeSlots) {
				t.Fatalf("Individual %d is invalid", i)
			}
			for _, v := range ind.Values() {
				if !allowed[v] {
					t.Fatalf("Individual %d uses unexpected value %q", i, v)
				}
			}
		}
	}
	check(gen0)

	best, err := e.Evolve(context.Background(), EvolveOptions{})
	if err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	check(e.Population())
	if best == nil || e.Generation() != 1 || e.State() != StateDone {
		t.Errorf("Expected one completed generation, got gen=%d state=%s", e.Generation(), e.State())
	}
}

func TestEngine_ValidityInvariant(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 8
	var invalid int
	e := newTestEngine(t, cfg, testProblem(), 7, Options{
		Observer: ObserverFunc(func(s GenerationStats) { invalid += s.Invalid }),
	})

	if _, err := e.Evolve(context.Background(), EvolveOptions{}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	if invalid != 0 {
		t.Errorf("Expected no invalid individuals, got %d", invalid)
	}
	for i, ind := range e.Population() {
		if !timetable.IsValid(ind, testSubjects, testSlots) {
			t.Fatalf("Individual %d is invalid", i)
		}
	}
}

func TestEngine_Deterministic(t *testing.T) {
	run := func() timetable.Schedule {
		e := newTestEngine(t, smallConfig(), testProblem(), 99, Options{Workers: 4})
		best, err := e.Evolve(context.Background(), EvolveOptions{})
		if err != nil {
			t.Fatalf("Evolve failed: %v", err)
		}
		return best.Schedule()
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Error("Same seed should produce the same best timetable")
	}
}

func TestEngine_ResumeContinuity(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 10
	cp := &memCheckpointer{}
	e := newTestEngine(t, cfg, testProblem(), 11, Options{Checkpointer: cp, SaveAtSteps: []int{10}})

	if _, err := e.Evolve(context.Background(), EvolveOptions{}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	saved, ok := cp.states["gen_10"]
	if !ok {
		t.Fatalf("Expected checkpoint gen_10, got %v", cp.labels)
	}

	// simulate persistence
	data, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var restored RunState
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if restored.Generation != 10 {
		t.Fatalf("Expected stored generation 10, got %d", restored.Generation)
	}

	resumed, err := NewEngineFromState(&restored, nil, rand.New(rand.NewSource(12)), Options{LogEvery: -1})
	if err != nil {
		t.Fatalf("NewEngineFromState failed: %v", err)
	}
	if resumed.Generation() != 10 {
		t.Fatalf("Expected restored generation 10, got %d", resumed.Generation())
	}
	if !reflect.DeepEqual(resumed.Population()[0].Schedule(), restored.Population[0]) {
		t.Error("Restored population should match the checkpoint")
	}

	_, err = resumed.Evolve(context.Background(), EvolveOptions{
		StartGeneration: restored.Generation,
		MaxGenerations:  restored.Generation + 5,
	})
	if err != nil {
		t.Fatalf("Resumed Evolve failed: %v", err)
	}
	if resumed.Generation() != 15 {
		t.Errorf("Expected generation counter 15 after resume, got %d", resumed.Generation())
	}
}

func TestEngine_CheckpointSchedule(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 6
	cp := &memCheckpointer{}
	e := newTestEngine(t, cfg, testProblem(), 5, Options{
		Checkpointer: cp,
		SaveInterval: 2,
		SaveAtSteps:  []int{3, 4},
	})

	if _, err := e.Evolve(context.Background(), EvolveOptions{SaveBest: true}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}

	var scheduled []string
	for _, label := range cp.labels {
		if strings.HasPrefix(label, "best_gen_") {
			if label == "best_gen_0" {
				t.Error("Generation 0 must not emit a best checkpoint")
			}
			continue
		}
		scheduled = append(scheduled, label)
	}
	want := []string{"gen_2", "gen_3", "gen_4", "gen_6"}
	if !reflect.DeepEqual(scheduled, want) {
		t.Errorf("Expected scheduled checkpoints %v, got %v", want, scheduled)
	}

	for label, st := range cp.states {
		if err := st.Validate(); err != nil {
			t.Errorf("Checkpoint %s is not valid: %v", label, err)
		}
	}
}

func TestEngine_BestCheckpointsImprove(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 10
	cp := &memCheckpointer{}
	e := newTestEngine(t, cfg, testProblem(), 21, Options{Checkpointer: cp})

	if _, err := e.Evolve(context.Background(), EvolveOptions{SaveBest: true}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}

	prev := math.Inf(-1)
	for _, label := range cp.labels {
		st := cp.states[label]
		fit := e.Model().Evaluate(st.Best())
		if fit <= prev {
			t.Errorf("Checkpoint %s does not improve best fitness: %v <= %v", label, fit, prev)
		}
		prev = fit
	}
}

func TestEngine_CheckpointFailureDoesNotStopRun(t *testing.T) {
	cfg := smallConfig()
	e := newTestEngine(t, cfg, testProblem(), 3, Options{Checkpointer: &memCheckpointer{fail: true}, SaveInterval: 1})

	if _, err := e.Evolve(context.Background(), EvolveOptions{}); err != nil {
		t.Fatalf("Evolve should tolerate checkpoint failures, got %v", err)
	}
	if e.Generation() != cfg.NumGenerations {
		t.Errorf("Expected %d generations, got %d", cfg.NumGenerations, e.Generation())
	}
}

func TestEngine_SeededRunKeepsSeedFitness(t *testing.T) {
	cfg := smallConfig()
	cfg.ElitePercentage = 0.25
	e := newTestEngine(t, cfg, testProblem(), 8, Options{})

	seed := NewInitializer(testSubjects, testDays, testSlots, nil, rand.New(rand.NewSource(1))).GenerateIndividual(false)
	seedFitness := e.Model().Evaluate(seed)

	best, err := e.Evolve(context.Background(), EvolveOptions{InitialSolution: seed})
	if err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	if got := e.Model().Evaluate(best); got < seedFitness {
		t.Errorf("Elitism should never lose the seed: best %v < seed %v", got, seedFitness)
	}
}

func TestEngine_SeedWithForeignDays(t *testing.T) {
	e := newTestEngine(t, smallConfig(), testProblem(), 8, Options{})

	days := []string{"Mon", "Tue", "Fri"}
	seed := NewInitializer(testSubjects, days, testSlots, nil, rand.New(rand.NewSource(1))).GenerateIndividual(false)

	_, err := e.Evolve(context.Background(), EvolveOptions{InitialSolution: seed})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "initial_solution" {
		t.Fatalf("Expected initial_solution validation error, got %v", err)
	}
}

type stateRecorder struct {
	engine *Engine
	states []State
}

func (r *stateRecorder) SaveRunState(label string, state *RunState) error {
	r.states = append(r.states, r.engine.State())
	return nil
}

func TestEngine_CheckpointStateTransitions(t *testing.T) {
	rec := &stateRecorder{}
	e := newTestEngine(t, smallConfig(), testProblem(), 2, Options{Checkpointer: rec, SaveInterval: 1})
	rec.engine = e

	if _, err := e.Evolve(context.Background(), EvolveOptions{MaxGenerations: 3}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	if len(rec.states) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(rec.states))
	}
	for i, st := range rec.states {
		if st != StateCheckpointed {
			t.Errorf("Checkpoint %d saved in state %s, want %s", i, st, StateCheckpointed)
		}
	}
	if e.State() != StateDone {
		t.Errorf("Expected DONE after the run, got %s", e.State())
	}

	if _, err := e.Checkpoint("manual"); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if e.State() != StateCheckpointed {
		t.Errorf("Expected CHECKPOINTED after a manual checkpoint, got %s", e.State())
	}
}

func TestEngine_PartialStart(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 0
	e := newTestEngine(t, cfg, testProblem(), 4, Options{})

	partial := timetable.Schedule{"Tue": {"s2": "Art"}}
	if _, err := e.Evolve(context.Background(), EvolveOptions{Partial: partial}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	for i, ind := range e.Population() {
		if v, _ := ind.Get("Tue", "s2"); v != "Art" {
			t.Fatalf("Individual %d lost the partial assignment", i)
		}
	}
}

func TestEngine_LoadStateIncompatible(t *testing.T) {
	e := newTestEngine(t, smallConfig(), testProblem(), 1, Options{})
	if _, err := e.Evolve(context.Background(), EvolveOptions{MaxGenerations: 1}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	state, err := e.Checkpoint("manual")
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	other := testProblem()
	other.TimeSlots = []string{"s1", "s2", "s3", "s5"}
	e2 := newTestEngine(t, smallConfig(), other, 1, Options{})

	err = e2.LoadState(state)
	var cerr *CompatibilityError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected CompatibilityError, got %v", err)
	}
	if cerr.Field != "time_slots" {
		t.Errorf("Expected mismatch on time_slots, got %s", cerr.Field)
	}
}

func TestEngine_CheckpointBeforeRun(t *testing.T) {
	e := newTestEngine(t, smallConfig(), testProblem(), 1, Options{})
	_, err := e.Checkpoint("early")
	var perr *PreconditionError
	if !errors.As(err, &perr) {
		t.Errorf("Expected PreconditionError, got %v", err)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	e := newTestEngine(t, smallConfig(), testProblem(), 1, Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evolve(ctx, EvolveOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if e.Generation() != 0 {
		t.Errorf("No generation should complete, got %d", e.Generation())
	}
}

func TestEngine_EarlyStop(t *testing.T) {
	cfg := smallConfig()
	cfg.NumGenerations = 200
	e := newTestEngine(t, cfg, testProblem(), 2, Options{
		Convergence: ConvergenceConfig{Enabled: true, Patience: 3, Threshold: 10},
	})

	if _, err := e.Evolve(context.Background(), EvolveOptions{}); err != nil {
		t.Fatalf("Evolve failed: %v", err)
	}
	if e.Generation() >= cfg.NumGenerations {
		t.Errorf("Expected early stop, ran all %d generations", e.Generation())
	}
}

func TestNewEngine_Validation(t *testing.T) {
	cfg := smallConfig()
	cfg.TournamentSize = 1
	_, err := NewEngine(cfg, testProblem(), nil, Options{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "tournament_size" {
		t.Errorf("Expected tournament_size validation error, got %v", err)
	}

	problem := testProblem()
	problem.Subjects = nil
	if _, err := NewEngine(smallConfig(), problem, nil, Options{}); !errors.As(err, &verr) {
		t.Errorf("Expected validation error for empty subjects, got %v", err)
	}

	problem = testProblem()
	problem.Subjects = []string{"Math", timetable.Free}
	if _, err := NewEngine(smallConfig(), problem, nil, Options{}); err == nil {
		t.Error("Expected error for subject named Free")
	}

	problem = testProblem()
	problem.Preferences = timetable.Preferences{"Math": {"Sun": "s1"}}
	if _, err := NewEngine(smallConfig(), problem, nil, Options{}); err == nil {
		t.Error("Expected error for preference on unknown day")
	}
}

func TestConfig_FinalMutationRateAboveInitial(t *testing.T) {
	cfg := smallConfig()
	cfg.InitialMutationRate = 0.1
	cfg.FinalMutationRate = 0.9

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "final_mutation_rate" {
		t.Fatalf("Expected final_mutation_rate validation error, got %v", err)
	}

	cfg.FinalMutationRate = cfg.InitialMutationRate
	if err := cfg.Validate(); err != nil {
		t.Errorf("Equal rates should be accepted, got %v", err)
	}
}

func TestConvergenceTracker(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.01})
	if tracker.Update(100) || tracker.Update(100) {
		t.Fatal("Should not converge before patience is exhausted")
	}
	if tracker.Update(150) {
		t.Fatal("Significant gain should reset staleness")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0, got %d", tracker.StaleCount())
	}
	tracker.Update(150.1)
	if !tracker.Update(150.2) {
		t.Error("Expected convergence after two stale generations")
	}
	if tracker.Best() != 150.2 {
		t.Errorf("Expected best 150.2, got %v", tracker.Best())
	}

	disabled := NewConvergenceTracker(DisabledConvergenceConfig())
	for i := 0; i < 10; i++ {
		if disabled.Update(1) {
			t.Fatal("Disabled tracker must never converge")
		}
	}
}

func TestComputeStats(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pop := randomPopulation(rng, 4)
	s := computeStats(pop, []float64{1, 3, math.Inf(-1), 2})

	if s.Invalid != 1 {
		t.Errorf("Expected 1 invalid, got %d", s.Invalid)
	}
	if s.BestFitness != 3 || s.MeanFitness != 2 {
		t.Errorf("Expected best 3 mean 2, got %v %v", s.BestFitness, s.MeanFitness)
	}
	if math.Abs(s.StdDevFitness-1) > 1e-9 {
		t.Errorf("Expected sample std-dev 1, got %v", s.StdDevFitness)
	}
}
