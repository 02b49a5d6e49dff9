package ga

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// seedKeepProbability is the chance that a derivative of a seed keeps each of
// the seed's cells before the rest is refilled.
const seedKeepProbability = 0.8

// Initializer builds generation-0 individuals for one problem.
type Initializer struct {
	subjects []string
	days     []string
	slots    []string
	prefs    timetable.Preferences
	rng      *rand.Rand
}

// NewInitializer creates an initializer drawing from rng.
func NewInitializer(subjects, days, slots []string, prefs timetable.Preferences, rng *rand.Rand) *Initializer {
	return &Initializer{
		subjects: subjects,
		days:     days,
		slots:    slots,
		prefs:    prefs,
		rng:      rng,
	}
}

// pool returns the shuffled multiset of subjects used to fill a timetable:
// floor(cells/subjects) repetitions of the subject list. When there are more
// subjects than cells, a random subset of cells-many subjects is used.
func (in *Initializer) pool() []string {
	if len(in.subjects) == 0 {
		return nil
	}
	total := len(in.days) * len(in.slots)
	reps := total / len(in.subjects)

	var pool []string
	if reps == 0 {
		pool = append([]string(nil), in.subjects...)
		in.shuffle(pool)
		return pool[:total]
	}
	pool = make([]string, 0, reps*len(in.subjects))
	for i := 0; i < reps; i++ {
		pool = append(pool, in.subjects...)
	}
	in.shuffle(pool)
	return pool
}

func (in *Initializer) shuffle(values []string) {
	in.rng.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
}

// GenerateIndividual creates one fully populated timetable. With
// considerPreferences, every concrete preference whose slot is still Free is
// placed before the random fill. Cells left over once the pool runs dry stay Free.
func (in *Initializer) GenerateIndividual(considerPreferences bool) *timetable.Timetable {
	t := timetable.New(in.days, in.slots)
	pool := in.pool()

	if considerPreferences {
		for _, subject := range in.subjects {
			for _, day := range in.days {
				slot, ok := in.prefs.Preferred(subject, day)
				if !ok {
					continue
				}
				if current, _ := t.Get(day, slot); current != timetable.Free {
					continue
				}
				t.Set(day, slot, subject)
				pool = removeOne(pool, subject)
			}
		}
	}

	in.fill(t, pool)
	return t
}

// fill pops pool values into Free cells in day/slot order.
func (in *Initializer) fill(t *timetable.Timetable, pool []string) {
	for _, day := range in.days {
		for _, slot := range in.slots {
			if len(pool) == 0 {
				return
			}
			if current, _ := t.Get(day, slot); current != timetable.Free {
				continue
			}
			t.Set(day, slot, pool[len(pool)-1])
			pool = pool[:len(pool)-1]
		}
	}
}

// InitializePopulation returns round(size*preferenceFraction)
// preference-aware individuals followed by fully random ones.
func (in *Initializer) InitializePopulation(size int, preferenceFraction float64) []*timetable.Timetable {
	adherent := int(math.Round(float64(size) * preferenceFraction))
	adherent = max(0, min(adherent, size))

	population := make([]*timetable.Timetable, 0, size)
	for i := 0; i < adherent; i++ {
		population = append(population, in.GenerateIndividual(true))
	}
	for len(population) < size {
		population = append(population, in.GenerateIndividual(false))
	}
	return population
}

// InitializePopulationWithSeed returns a population whose first member is a
// copy of seed. The others are derived from seed by keeping each cell with
// a fixed probability and refilling the rest.
func (in *Initializer) InitializePopulationWithSeed(size int, seed *timetable.Timetable) ([]*timetable.Timetable, error) {
	if size <= 0 {
		return nil, nil
	}
	population := make([]*timetable.Timetable, 0, size)
	population = append(population, seed.Clone())

	for len(population) < size {
		partial := make(timetable.Schedule, len(in.days))
		for _, day := range in.days {
			row := make(map[string]string, len(in.slots))
			for _, slot := range in.slots {
				if in.rng.Float64() < seedKeepProbability {
					if v, ok := seed.Get(day, slot); ok {
						row[slot] = v
					}
				}
			}
			partial[day] = row
		}
		ind, err := in.CompletePartial(partial)
		if err != nil {
			return nil, err
		}
		population = append(population, ind)
	}
	return population, nil
}

// CompletePartial keeps every cell given in partial and fills the remaining
// cells from the subject pool, minus the subjects already placed. Cells that
// cannot be filled stay Free. Cells naming unknown days, slots, or subjects
// are rejected.
func (in *Initializer) CompletePartial(partial timetable.Schedule) (*timetable.Timetable, error) {
	known := toSet(in.subjects)
	days := toSet(in.days)
	slots := toSet(in.slots)

	t := timetable.New(in.days, in.slots)
	pool := in.pool()
	for day, row := range partial {
		if _, ok := days[day]; !ok {
			return nil, &ValidationError{Field: "partial", Reason: fmt.Sprintf("unknown day %q", day)}
		}
		for slot, subject := range row {
			if _, ok := slots[slot]; !ok {
				return nil, &ValidationError{Field: "partial." + day, Reason: fmt.Sprintf("unknown time slot %q", slot)}
			}
			if _, ok := known[subject]; !ok && subject != timetable.Free {
				return nil, &ValidationError{Field: "partial." + day + "." + slot, Reason: fmt.Sprintf("unknown subject %q", subject)}
			}
		}
	}

	// Placing in day/slot order keeps the result independent of map order.
	fixed := make(map[[2]string]bool)
	for _, day := range in.days {
		for _, slot := range in.slots {
			subject, ok := partial[day][slot]
			if !ok {
				continue
			}
			t.Set(day, slot, subject)
			fixed[[2]string{day, slot}] = true
			if subject != timetable.Free {
				pool = removeOne(pool, subject)
			}
		}
	}

	for _, day := range in.days {
		for _, slot := range in.slots {
			if fixed[[2]string{day, slot}] || len(pool) == 0 {
				continue
			}
			t.Set(day, slot, pool[len(pool)-1])
			pool = pool[:len(pool)-1]
		}
	}
	return t, nil
}

// removeOne drops the last occurrence of v from values, if any.
func removeOne(values []string, v string) []string {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] == v {
			return append(values[:i], values[i+1:]...)
		}
	}
	return values
}
