package tune

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Optimizer minimizes an objective over a box-bounded parameter space.
type Optimizer interface {
	// Run returns the best parameters found and their cost.
	Run(eval func([]float64) float64, lower, upper float64, dim int) ([]float64, float64, error)
}

// MayflyAdapter wraps the external Mayfly library to conform to Optimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// MinMayflyPopulation is the smallest population the Mayfly library accepts.
const MinMayflyPopulation = 20

// NewMayfly creates a new Mayfly optimizer adapter. popSize is raised to
// MinMayflyPopulation if smaller.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	if popSize < MinMayflyPopulation {
		popSize = MinMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper float64, dim int) ([]float64, float64, error) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower
	config.UpperBound = upper

	// Same seed, same search path.
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost, nil
}
