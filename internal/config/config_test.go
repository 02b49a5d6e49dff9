package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ga.DefaultConfig(), cfg.GA)
	assert.Equal(t, store.KindFS, cfg.Store.Kind)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Evolution.Convergence.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
ga:
  population_size: 40
  tournament_size: 4
evolution:
  save_interval: 25
  save_at_steps: [5, 10]
  save_best: true
store:
  kind: sqlite
server:
  shutdown_timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.GA.PopulationSize)
	assert.Equal(t, 4, cfg.GA.TournamentSize)
	assert.Equal(t, 1000, cfg.GA.NumGenerations, "unset fields keep defaults")
	assert.Equal(t, 25, cfg.Evolution.SaveInterval)
	assert.Equal(t, []int{5, 10}, cfg.Evolution.SaveAtSteps)
	assert.True(t, cfg.Evolution.SaveBest)
	assert.Equal(t, store.KindSQLite, cfg.Store.Kind)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "ga:\n  population_size: 40\n")
	t.Setenv("EVOTT_GA_POPULATION_SIZE", "60")
	t.Setenv("EVOTT_GA_DIVERSITY_WEIGHT", "0.5")
	t.Setenv("EVOTT_STORE_KIND", "badger")
	t.Setenv("EVOTT_EVOLUTION_SAVE_AT_STEPS", "3,7")
	t.Setenv("EVOTT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.GA.PopulationSize)
	assert.Equal(t, 0.5, cfg.GA.DiversityWeight)
	assert.Equal(t, store.KindBadger, cfg.Store.Kind)
	assert.Equal(t, []int{3, 7}, cfg.Evolution.SaveAtSteps)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"elite above one", "ga:\n  elite_percentage: 1.5\n"},
		{"tournament too small", "ga:\n  tournament_size: 1\n"},
		{"tournament above population", "ga:\n  population_size: 2\n"},
		{"unknown store", "store:\n  kind: tape\n"},
		{"bad log level", "log_level: loud\n"},
		{"convergence without patience", "evolution:\n  convergence:\n    enabled: true\n    patience: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("EVOTT_GA_POPULATION_SIZE", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Evolution.SaveInterval = 7
	cfg.Evolution.SaveAtSteps = []int{1}
	cfg.Evolution.Workers = 2

	opts := cfg.EngineOptions()
	assert.Equal(t, 7, opts.SaveInterval)
	assert.Equal(t, []int{1}, opts.SaveAtSteps)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 10, opts.LogEvery)
	assert.Nil(t, opts.Checkpointer)
}

func TestLoadProblem_YAML(t *testing.T) {
	path := writeFile(t, "problem.yaml", `
subjects: [Math, Art, Bio]
days: [Mon, Tue]
time_slots: ["08:00", "10:00"]
preferences:
  Math:
    Mon: "08:00"
    Tue: null
rules:
  - name: balance
    weight: 10
  - name: daily_load
    weight: 2
`)
	problem, err := LoadProblem(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Math", "Art", "Bio"}, problem.Subjects)
	slot, ok := problem.Preferences.Preferred("Math", "Mon")
	assert.True(t, ok)
	assert.Equal(t, "08:00", slot)
	_, ok = problem.Preferences.Preferred("Math", "Tue")
	assert.False(t, ok, "null means no preference")
	require.Len(t, problem.Rules, 2)
	assert.Equal(t, "daily_load", problem.Rules[1].Name)
}

func TestLoadProblem_JSON(t *testing.T) {
	path := writeFile(t, "problem.json", `{
  "subjects": ["A", "B"],
  "days": ["D1"],
  "time_slots": ["t1", "t2"],
  "preferences": {"A": {"D1": null}}
}`)
	problem, err := LoadProblem(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, problem.TimeSlots)
	assert.False(t, problem.Preferences.HasAny("A"))
}

func TestLoadProblem_Invalid(t *testing.T) {
	tests := map[string]string{
		"no subjects":      "subjects: []\ndays: [Mon]\ntime_slots: [s1]\n",
		"duplicate day":    "subjects: [A]\ndays: [Mon, Mon]\ntime_slots: [s1]\n",
		"free subject":     "subjects: [A, Free]\ndays: [Mon]\ntime_slots: [s1]\n",
		"unknown pref day": "subjects: [A]\ndays: [Mon]\ntime_slots: [s1]\npreferences:\n  A:\n    Sun: s1\n",
		"unknown rule":     "subjects: [A]\ndays: [Mon]\ntime_slots: [s1]\nrules:\n  - name: nope\n    weight: 1\n",
		"malformed":        "subjects: [A\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProblem(writeFile(t, "problem.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSchedule(t *testing.T) {
	path := writeFile(t, "initial.yaml", `
Mon:
  "08:00": Math
  "10:00": Free
Tue:
  "08:00": Art
`)
	schedule, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, "Math", schedule["Mon"]["08:00"])
	assert.Equal(t, "Art", schedule["Tue"]["08:00"])

	_, err = LoadSchedule(writeFile(t, "empty.json", "{}"))
	assert.Error(t, err)

	_, err = LoadSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
