// Package config loads run settings: defaults, then an optional YAML file,
// then EVOTT_* environment overrides, then validation. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVOTT_"

// Config is the complete run configuration.
type Config struct {
	GA        ga.Config       `yaml:"ga" json:"ga" envPrefix:"GA_"`
	Evolution EvolutionConfig `yaml:"evolution" json:"evolution" envPrefix:"EVOLUTION_"`
	Store     StoreConfig     `yaml:"store" json:"store" envPrefix:"STORE_"`
	Server    ServerConfig    `yaml:"server" json:"server" envPrefix:"SERVER_"`
	LogLevel  string          `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// EvolutionConfig holds engine options that are not search parameters.
type EvolutionConfig struct {
	Seed         int64                `yaml:"seed" json:"seed" env:"SEED"`
	SaveInterval int                  `yaml:"save_interval" json:"save_interval" env:"SAVE_INTERVAL" validate:"gte=0"`
	SaveAtSteps  []int                `yaml:"save_at_steps" json:"save_at_steps" env:"SAVE_AT_STEPS" validate:"dive,gte=0"`
	SaveBest     bool                 `yaml:"save_best" json:"save_best" env:"SAVE_BEST"`
	Workers      int                  `yaml:"workers" json:"workers" env:"WORKERS" validate:"gte=0"`
	LogEvery     int                  `yaml:"log_every" json:"log_every" env:"LOG_EVERY"`
	Convergence  ga.ConvergenceConfig `yaml:"convergence" json:"convergence" envPrefix:"CONVERGENCE_"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	Kind    store.Kind `yaml:"kind" json:"kind" env:"KIND" validate:"oneof=fs memory sqlite badger"`
	DataDir string     `yaml:"data_dir" json:"data_dir" env:"DATA_DIR" validate:"required"`
}

// ServerConfig configures the HTTP job runner.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr" env:"ADDR" validate:"required"`
	MaxJobs         int           `yaml:"max_jobs" json:"max_jobs" env:"MAX_JOBS" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GA: ga.DefaultConfig(),
		Evolution: EvolutionConfig{
			Seed:        0,
			LogEvery:    10,
			Convergence: ga.DisabledConvergenceConfig(),
		},
		Store: StoreConfig{
			Kind:    store.KindFS,
			DataDir: "./data",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxJobs:         4,
			ShutdownTimeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds a configuration from defaults, the YAML file at path (if not
// empty), and EVOTT_* environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, fmt.Errorf("failed to parse environment: %w", aggErr.Errors[0])
		}
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ga.ValidationError{Field: fe.Namespace(), Reason: "failed " + fe.Tag() + " " + fe.Param()}
		}
		return err
	}
	if err := c.GA.Validate(); err != nil {
		return err
	}
	if c.Evolution.Convergence.Enabled && c.Evolution.Convergence.Patience < 1 {
		return &ga.ValidationError{Field: "evolution.convergence.patience", Reason: "must be >= 1 when enabled"}
	}
	return nil
}

// EngineOptions maps the evolution settings onto engine options. Checkpointer
// and Observer are left for the caller.
func (c *Config) EngineOptions() ga.Options {
	return ga.Options{
		SaveInterval: c.Evolution.SaveInterval,
		SaveAtSteps:  append([]int(nil), c.Evolution.SaveAtSteps...),
		Workers:      c.Evolution.Workers,
		LogEvery:     c.Evolution.LogEvery,
		Convergence:  c.Evolution.Convergence,
	}
}
