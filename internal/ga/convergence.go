package ga

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early stopping on stalled best fitness.
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`

	// Patience is the number of generations with no significant improvement
	// before the run stops.
	Patience int `json:"patience" yaml:"patience" env:"PATIENCE" validate:"gte=0"`

	// Threshold is the minimum relative gain in best fitness that counts as
	// progress. Relative gain = (new - last) / |last|.
	Threshold float64 `json:"threshold" yaml:"threshold" env:"THRESHOLD" validate:"gte=0"`
}

// DefaultConvergenceConfig returns the settings used when early stopping is
// switched on without further tuning.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  50,
		Threshold: 0.0005,
	}
}

// DisabledConvergenceConfig runs every requested generation.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker follows best fitness per generation and reports when
// the search has stalled.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(-1),
		lastSignificant: math.Inf(-1),
	}
}

// Update records a generation's best fitness and returns true once the
// search has converged.
func (c *ConvergenceTracker) Update(fitness float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, fitness)
	if fitness > c.best {
		c.best = fitness
	}

	if len(c.history) == 1 || math.IsInf(c.lastSignificant, -1) {
		c.lastSignificant = fitness
		return false
	}

	gain := fitness - c.lastSignificant
	if denom := math.Abs(c.lastSignificant); denom > 0 {
		gain /= denom
	}

	if gain > 0 && gain >= c.config.Threshold {
		c.lastSignificant = fitness
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_fitness", c.best,
		)
		return true
	}
	return false
}

// Best returns the best fitness seen so far.
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of the recorded best-fitness series.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the number of generations since the last significant gain.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}
