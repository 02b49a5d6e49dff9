package ga

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// FitnessFunc scores one individual.
type FitnessFunc func(*timetable.Timetable) float64

// TournamentSelect draws size distinct individuals without replacement and
// returns the one maximizing fitness + diversityWeight * self diversity.
// Ties go to the earliest draw.
func TournamentSelect(rng *rand.Rand, population []*timetable.Timetable, fitness FitnessFunc, size int, diversityWeight float64) (*timetable.Timetable, error) {
	if size < 2 {
		return nil, &PreconditionError{Op: "tournament", Reason: fmt.Sprintf("size must be >= 2, got %d", size)}
	}
	if size > len(population) {
		return nil, &PreconditionError{Op: "tournament", Reason: fmt.Sprintf("size %d exceeds population %d", size, len(population))}
	}
	if diversityWeight < 0 {
		return nil, &PreconditionError{Op: "tournament", Reason: "diversity weight must be >= 0"}
	}

	var winner *timetable.Timetable
	bestScore := 0.0
	for _, idx := range rng.Perm(len(population))[:size] {
		ind := population[idx]
		score := fitness(ind) + diversityWeight*ind.SelfDiversity()
		if winner == nil || score > bestScore {
			winner = ind
			bestScore = score
		}
	}
	return winner, nil
}
