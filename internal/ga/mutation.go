package ga

import (
	"math/rand"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// AdaptiveMutationRate interpolates linearly from initial at generation 0 to
// final at maxGenerations.
func AdaptiveMutationRate(generation, maxGenerations int, initial, final float64) float64 {
	if maxGenerations <= 0 {
		return initial
	}
	progress := float64(generation) / float64(maxGenerations)
	return initial - (initial-final)*progress
}

// Mutate replaces each cell, independently with probability rate, by a value
// drawn uniformly from subjects plus Free. Cells are visited in day/slot order
// so a fixed seed gives a fixed result.
func Mutate(rng *rand.Rand, t *timetable.Timetable, subjects []string, rate float64) {
	if rate <= 0 {
		return
	}
	choices := make([]string, 0, len(subjects)+1)
	choices = append(choices, subjects...)
	choices = append(choices, timetable.Free)

	for _, day := range t.Days() {
		for _, slot := range t.Slots() {
			if rng.Float64() < rate {
				t.Set(day, slot, choices[rng.Intn(len(choices))])
			}
		}
	}
}
