package ga

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

func TestGenerateIndividual_EvenFill(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	days := []string{"Mon", "Tue"}
	slots := []string{"s1", "s2", "s3"}
	in := NewInitializer(testSubjects, days, slots, nil, rng)

	for i := 0; i < 20; i++ {
		ind := in.GenerateIndividual(false)
		if !timetable.IsValid(ind, testSubjects, slots) {
			t.Fatal("Generated individual is invalid")
		}
		counts := ind.SubjectCounts()
		for _, s := range testSubjects {
			if counts[s] != 2 {
				t.Fatalf("Expected each subject twice in 6 cells, got %v", counts)
			}
		}
	}
}

func TestGenerateIndividual_LeftoverStaysFree(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	slots := []string{"s1", "s2", "s3", "s4"}
	in := NewInitializer(testSubjects, []string{"Mon"}, slots, nil, rng)

	ind := in.GenerateIndividual(false)
	free := 0
	for _, v := range ind.Values() {
		if v == timetable.Free {
			free++
		}
	}
	if free != 1 {
		t.Errorf("Expected 1 Free cell (4 cells, 3 subjects), got %d", free)
	}
}

func TestGenerateIndividual_MoreSubjectsThanCells(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	subjects := []string{"A", "B", "C", "D", "E"}
	in := NewInitializer(subjects, []string{"Mon"}, []string{"s1", "s2"}, nil, rng)

	ind := in.GenerateIndividual(false)
	if !timetable.IsValid(ind, subjects, []string{"s1", "s2"}) {
		t.Fatal("Generated individual is invalid")
	}
	values := ind.Values()
	if values[0] == timetable.Free || values[1] == timetable.Free || values[0] == values[1] {
		t.Errorf("Expected two distinct subjects, got %v", values)
	}
}

func TestInitializePopulation_PreferencePressure(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	subjects := []string{"A", "B", "C"}
	prefs := timetable.Preferences{"A": {"Mon": "s1"}}
	in := NewInitializer(subjects, testDays, testSlots, prefs, rng)

	pop := in.InitializePopulation(50, 1.0)
	if len(pop) != 50 {
		t.Fatalf("Expected 50 individuals, got %d", len(pop))
	}
	for i, ind := range pop {
		if !timetable.IsValid(ind, subjects, testSlots) {
			t.Fatalf("Individual %d is invalid", i)
		}
		if v, _ := ind.Get("Mon", "s1"); v != "A" {
			t.Fatalf("Individual %d: expected A at Mon/s1, got %s", i, v)
		}
	}
}

func TestInitializePopulation_RoundsAdherentCount(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	subjects := []string{"A", "B"}
	// more cells than pool, so preference placement is observable
	prefs := timetable.Preferences{"A": {"Mon": "s1"}, "B": {"Mon": "s2"}}
	in := NewInitializer(subjects, []string{"Mon"}, []string{"s1", "s2"}, prefs, rng)

	pop := in.InitializePopulation(5, 0.5) // round(2.5) = 3
	for i := 0; i < 3; i++ {
		a, _ := pop[i].Get("Mon", "s1")
		b, _ := pop[i].Get("Mon", "s2")
		if a != "A" || b != "B" {
			t.Errorf("Individual %d should be preference-adherent, got %s/%s", i, a, b)
		}
	}
}

func TestInitializePopulationWithSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	in := NewInitializer(testSubjects, testDays, testSlots, nil, rng)
	seed := in.GenerateIndividual(false)

	pop, err := in.InitializePopulationWithSeed(10, seed)
	if err != nil {
		t.Fatalf("InitializePopulationWithSeed failed: %v", err)
	}
	if len(pop) != 10 {
		t.Fatalf("Expected 10 individuals, got %d", len(pop))
	}
	if pop[0] == seed || pop[0].DiversityBetween(seed) != 0 {
		t.Error("First member should be an independent copy of the seed")
	}
	for i, ind := range pop {
		if !timetable.IsValid(ind, testSubjects, testSlots) {
			t.Fatalf("Individual %d is invalid", i)
		}
	}
}

func TestCompletePartial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	in := NewInitializer(testSubjects, testDays, testSlots, nil, rng)

	partial := timetable.Schedule{
		"Mon": {"s1": "Bio", "s2": timetable.Free},
		"Wed": {"s4": "Math"},
	}
	ind, err := in.CompletePartial(partial)
	if err != nil {
		t.Fatalf("CompletePartial failed: %v", err)
	}
	if !timetable.IsValid(ind, testSubjects, testSlots) {
		t.Fatal("Completed individual is invalid")
	}
	for day, row := range partial {
		for slot, want := range row {
			if got, _ := ind.Get(day, slot); got != want {
				t.Errorf("%s/%s: expected kept value %s, got %s", day, slot, want, got)
			}
		}
	}

	_, err = in.CompletePartial(timetable.Schedule{"Mon": {"s1": "Chemistry"}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for unknown subject, got %v", err)
	}
}
