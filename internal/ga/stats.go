package ga

import (
	"math"
	"time"

	"github.com/cwbudde/evotimetable/internal/timetable"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes one finished generation.
type GenerationStats struct {
	Generation       int       `json:"generation"`
	BestFitness      float64   `json:"best_fitness"`
	MeanFitness      float64   `json:"mean_fitness"`
	StdDevFitness    float64   `json:"stddev_fitness"`
	AvgSelfDiversity float64   `json:"avg_self_diversity"`
	MutationRate     float64   `json:"mutation_rate"`
	EliteAccepted    int       `json:"elite_accepted"`
	Invalid          int       `json:"invalid"`
	Timestamp        time.Time `json:"timestamp"`
}

// Observer receives stats after every generation.
type Observer interface {
	ObserveGeneration(GenerationStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(GenerationStats)

// ObserveGeneration calls f(s).
func (f ObserverFunc) ObserveGeneration(s GenerationStats) { f(s) }

// computeStats aggregates a scored population. Invalid (-Inf) individuals
// are counted but left out of the moments so the values stay encodable.
func computeStats(population []*timetable.Timetable, scores []float64) GenerationStats {
	s := GenerationStats{
		BestFitness: math.Inf(-1),
		Timestamp:   time.Now(),
	}

	finite := make([]float64, 0, len(scores))
	for _, f := range scores {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			s.Invalid++
			continue
		}
		finite = append(finite, f)
		if f > s.BestFitness {
			s.BestFitness = f
		}
	}

	switch len(finite) {
	case 0:
		s.BestFitness = 0
	case 1:
		s.MeanFitness = finite[0]
	default:
		s.MeanFitness, s.StdDevFitness = stat.MeanStdDev(finite, nil)
	}

	if len(population) > 0 {
		diversity := make([]float64, len(population))
		for i, ind := range population {
			diversity[i] = ind.SelfDiversity()
		}
		s.AvgSelfDiversity = stat.Mean(diversity, nil)
	}
	return s
}
