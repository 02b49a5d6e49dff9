package ga

import (
	"math/rand"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// Crossover recombines two parents at day granularity. A point is drawn in
// [1, len(days)-1]; child one takes p1's days before it and p2's from it on,
// child two the complement. Parents are never modified.
func Crossover(rng *rand.Rand, p1, p2 *timetable.Timetable, days []string) (*timetable.Timetable, *timetable.Timetable, error) {
	if !timetable.SameStructure(p1, p2) {
		return nil, nil, &PreconditionError{Op: "crossover", Reason: "parents have different day/slot structure", Err: timetable.ErrStructureMismatch}
	}
	if len(days) == 0 {
		return nil, nil, &PreconditionError{Op: "crossover", Reason: "no days"}
	}

	c1 := p1.Clone()
	c2 := p2.Clone()
	if len(days) < 2 {
		return c1, c2, nil
	}

	point := 1 + rng.Intn(len(days)-1)
	for _, day := range days[point:] {
		for _, slot := range p1.Slots() {
			v1, _ := p1.Get(day, slot)
			v2, _ := p2.Get(day, slot)
			c1.Set(day, slot, v2)
			c2.Set(day, slot, v1)
		}
	}
	return c1, c2, nil
}
