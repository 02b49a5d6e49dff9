package ga

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// RunState is the logical checkpoint of a run. Fitness model and validator are
// rebuilt from subjects, time slots, and preferences on load; they are not stored.
type RunState struct {
	Generation     int                   `json:"generation"`
	Config         Config                `json:"config"`
	Subjects       []string              `json:"subjects"`
	Days           []string              `json:"days"`
	TimeSlots      []string              `json:"time_slots"`
	Preferences    timetable.Preferences `json:"preferences"`
	BestIndividual timetable.Schedule    `json:"best_individual"`
	Population     []timetable.Schedule  `json:"population"`
}

// Validate checks that the state is internally consistent and resumable.
func (s *RunState) Validate() error {
	if s == nil {
		return &ValidationError{Field: "state", Reason: "is nil"}
	}
	if s.Generation < 0 {
		return &ValidationError{Field: "generation", Reason: "must be >= 0"}
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	problem := Problem{
		Subjects:    s.Subjects,
		Days:        s.Days,
		TimeSlots:   s.TimeSlots,
		Preferences: s.Preferences,
	}
	if err := problem.Validate(); err != nil {
		return err
	}
	if len(s.Population) != s.Config.PopulationSize {
		return &ValidationError{
			Field:  "population",
			Reason: fmt.Sprintf("has %d members, config expects %d", len(s.Population), s.Config.PopulationSize),
		}
	}
	if s.BestIndividual == nil {
		return &ValidationError{Field: "best_individual", Reason: "is required"}
	}
	return nil
}

// Problem returns the problem captured by the state, with the default rules.
func (s *RunState) Problem() Problem {
	return Problem{
		Subjects:    append([]string(nil), s.Subjects...),
		Days:        append([]string(nil), s.Days...),
		TimeSlots:   append([]string(nil), s.TimeSlots...),
		Preferences: s.Preferences,
	}
}

// Best returns the stored best individual as a timetable.
func (s *RunState) Best() *timetable.Timetable {
	return timetable.FromSchedule(s.Days, s.TimeSlots, s.BestIndividual)
}

// CheckCompatible returns a *CompatibilityError if the state's subjects, days,
// or time slots differ from p in cardinality or names.
func (s *RunState) CheckCompatible(p Problem) error {
	if err := compareNames("subjects", p.Subjects, s.Subjects); err != nil {
		return err
	}
	if err := compareNames("days", p.Days, s.Days); err != nil {
		return err
	}
	return compareNames("time_slots", p.TimeSlots, s.TimeSlots)
}

func compareNames(field string, expected, actual []string) error {
	if len(expected) != len(actual) {
		return &CompatibilityError{
			Field:    field,
			Expected: fmt.Sprintf("%d entries", len(expected)),
			Actual:   fmt.Sprintf("%d entries", len(actual)),
		}
	}
	want := sortedCopy(expected)
	got := sortedCopy(actual)
	for i := range want {
		if want[i] != got[i] {
			return &CompatibilityError{
				Field:    field,
				Expected: strings.Join(want, ","),
				Actual:   strings.Join(got, ","),
			}
		}
	}
	return nil
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
