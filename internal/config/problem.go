package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"gopkg.in/yaml.v3"
)

// LoadProblem reads a problem definition. Files ending in .json are decoded
// as JSON, anything else as YAML. The problem is validated before returning.
func LoadProblem(path string) (ga.Problem, error) {
	var problem ga.Problem

	data, err := os.ReadFile(path)
	if err != nil {
		return problem, fmt.Errorf("failed to read problem file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &problem)
	} else {
		err = yaml.Unmarshal(data, &problem)
	}
	if err != nil {
		return problem, fmt.Errorf("failed to parse problem file %s: %w", path, err)
	}

	if err := problem.Validate(); err != nil {
		return problem, fmt.Errorf("invalid problem %s: %w", path, err)
	}
	return problem, nil
}

// LoadSchedule reads a day -> slot -> subject document, used to seed a run
// with a known or partial timetable. The format follows the file extension
// as in LoadProblem.
func LoadSchedule(path string) (timetable.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var schedule timetable.Schedule
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &schedule)
	} else {
		err = yaml.Unmarshal(data, &schedule)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
	}
	if len(schedule) == 0 {
		return nil, &ga.ValidationError{Field: "schedule", Reason: "empty schedule in " + path}
	}
	return schedule, nil
}
