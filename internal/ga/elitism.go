package ga

import (
	"sort"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// SelectElite picks size individuals from population, ranked by scores
// (index-aligned). Candidates are accepted greedily only if their pairwise
// diversity against every accepted member exceeds threshold. If the gate lets
// fewer than size through, the remainder is padded with the best-ranked
// individuals not yet chosen. accepted is the number that passed the gate;
// they come first in the returned slice.
func SelectElite(population []*timetable.Timetable, scores []float64, size int, threshold float64) (elites []*timetable.Timetable, accepted int) {
	if size <= 0 || len(population) == 0 {
		return nil, 0
	}
	size = min(size, len(population))

	order := make([]int, len(population))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	chosen := make([]bool, len(population))
	elites = make([]*timetable.Timetable, 0, size)
	for _, idx := range order {
		if len(elites) == size {
			break
		}
		candidate := population[idx]
		diverse := true
		for _, e := range elites {
			if candidate.DiversityBetween(e) <= threshold {
				diverse = false
				break
			}
		}
		if diverse {
			elites = append(elites, candidate)
			chosen[idx] = true
		}
	}
	accepted = len(elites)

	for _, idx := range order {
		if len(elites) == size {
			break
		}
		if !chosen[idx] {
			elites = append(elites, population[idx])
			chosen[idx] = true
		}
	}
	return elites, accepted
}
