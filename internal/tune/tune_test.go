package tune

import (
	"context"
	"math"
	"testing"

	"github.com/cwbudde/evotimetable/internal/ga"
)

// Sphere function: f(x) = sum((x_i-0.3)^2), minimum at 0.3
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += (v - 0.3) * (v - 0.3)
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	best, cost, err := optimizer.Run(sphere, 0, 1, 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(best) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(best))
	}
	if cost > 0.05 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v-0.3) > 0.2 {
			t.Errorf("Parameter %d = %f, expected near 0.3", i, v)
		}
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	_, cost1, err := NewMayfly(50, 20, 123).Run(sphere, 0, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	_, cost2, err := NewMayfly(50, 20, 123).Run(sphere, 0, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestNewMayflyRaisesPopulation(t *testing.T) {
	if m := NewMayfly(10, 5, 1); m.popSize != MinMayflyPopulation {
		t.Errorf("popSize = %d, want %d", m.popSize, MinMayflyPopulation)
	}
}

func TestDecodeEncode(t *testing.T) {
	base := ga.DefaultConfig()
	cfg := Decode(base, []float64{0.4, 0.25, 0.5, 1.7}, 4)

	if cfg.InitialMutationRate != 0.4 || cfg.FinalMutationRate != 0.1 {
		t.Errorf("mutation rates = %v/%v", cfg.InitialMutationRate, cfg.FinalMutationRate)
	}
	if cfg.DiversityWeight != 2 {
		t.Errorf("DiversityWeight = %v, want 2", cfg.DiversityWeight)
	}
	if cfg.DiversityThreshold != 1 {
		t.Errorf("DiversityThreshold = %v, want clamped 1", cfg.DiversityThreshold)
	}
	if cfg.PopulationSize != base.PopulationSize {
		t.Error("untuned fields must be kept")
	}

	x := Encode(cfg, 4)
	want := []float64{0.4, 0.25, 0.5, 1}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-12 {
			t.Errorf("Encode[%d] = %v, want %v", i, x[i], want[i])
		}
	}
}

func TestDecode_AnnealsDownward(t *testing.T) {
	base := ga.DefaultConfig()
	for _, x0 := range []float64{0, 0.1, 0.5, 1} {
		for _, x1 := range []float64{0, 0.3, 0.9, 1} {
			cfg := Decode(base, []float64{x0, x1, 0, 0.5}, 5)
			if cfg.FinalMutationRate > cfg.InitialMutationRate {
				t.Errorf("Decode(%v, %v): final %v > initial %v", x0, x1, cfg.FinalMutationRate, cfg.InitialMutationRate)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Decode(%v, %v) produced an invalid config: %v", x0, x1, err)
			}
			start := ga.AdaptiveMutationRate(0, 100, cfg.InitialMutationRate, cfg.FinalMutationRate)
			end := ga.AdaptiveMutationRate(100, 100, cfg.InitialMutationRate, cfg.FinalMutationRate)
			if end > start {
				t.Errorf("Decode(%v, %v): rate rises from %v to %v", x0, x1, start, end)
			}
		}
	}
}

func smallProblem() ga.Problem {
	return ga.Problem{
		Subjects:  []string{"Math", "Art", "Bio"},
		Days:      []string{"Mon", "Tue"},
		TimeSlots: []string{"s1", "s2", "s3"},
	}
}

func smallOptions() Options {
	return Options{
		Iterations:         2,
		PopSize:            20,
		Seed:               5,
		Generations:        3,
		Population:         6,
		Trials:             1,
		MaxDiversityWeight: 5,
	}
}

func TestTunerRun(t *testing.T) {
	tuner, err := New(ga.DefaultConfig(), smallProblem(), smallOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := tuner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if err := result.Config.Validate(); err != nil {
		t.Errorf("tuned config invalid: %v", err)
	}
	if result.Config.PopulationSize != 6 || result.Config.NumGenerations != 3 {
		t.Errorf("trial budget not applied: %+v", result.Config)
	}
	if result.Evaluations == 0 {
		t.Error("no candidates evaluated")
	}
	if math.IsInf(result.Fitness, 0) || result.Fitness <= 0 {
		t.Errorf("unexpected fitness %v", result.Fitness)
	}

	// The reported fitness is reproducible for the returned config.
	again, err := tuner.Evaluate(context.Background(), result.Config)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(again-result.Fitness) > 1e-9 {
		t.Errorf("Evaluate = %v, reported %v", again, result.Fitness)
	}
}

func TestTunerDeterministic(t *testing.T) {
	run := func() *Result {
		tuner, err := New(ga.DefaultConfig(), smallProblem(), smallOptions())
		if err != nil {
			t.Fatal(err)
		}
		result, err := tuner.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return result
	}

	a, b := run(), run()
	if a.Fitness != b.Fitness || a.Config != b.Config {
		t.Errorf("same seed gave different results: %+v vs %+v", a, b)
	}
}

func TestTunerCancelled(t *testing.T) {
	tuner, err := New(ga.DefaultConfig(), smallProblem(), smallOptions())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tuner.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if n := tuner.evaluations.Load(); n != 0 {
		t.Errorf("evaluated %d candidates after cancellation", n)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options, *ga.Problem)
		wantErr bool
	}{
		{"valid", func(*Options, *ga.Problem) {}, false},
		{"no iterations", func(o *Options, _ *ga.Problem) { o.Iterations = 0 }, true},
		{"no generations", func(o *Options, _ *ga.Problem) { o.Generations = 0 }, true},
		{"empty problem", func(_ *Options, p *ga.Problem) { p.Subjects = nil }, true},
		{"tiny population clamps tournament", func(o *Options, _ *ga.Problem) { o.Population = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := smallOptions()
			problem := smallProblem()
			tt.mutate(&opts, &problem)
			_, err := New(ga.DefaultConfig(), problem, opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
