package ga

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"github.com/go-playground/validator/v10"
)

// Config holds the evolutionary search parameters. It is stored verbatim in
// every checkpoint.
type Config struct {
	PopulationSize                      int     `json:"population_size" yaml:"population_size" env:"POPULATION_SIZE" validate:"gt=0"`
	NumGenerations                      int     `json:"num_generations" yaml:"num_generations" env:"NUM_GENERATIONS" validate:"gte=0"`
	ElitePercentage                     float64 `json:"elite_percentage" yaml:"elite_percentage" env:"ELITE_PERCENTAGE" validate:"gte=0,lte=1"`
	InitialMutationRate                 float64 `json:"initial_mutation_rate" yaml:"initial_mutation_rate" env:"INITIAL_MUTATION_RATE" validate:"gte=0,lte=1"`
	FinalMutationRate                   float64 `json:"final_mutation_rate" yaml:"final_mutation_rate" env:"FINAL_MUTATION_RATE" validate:"gte=0,lte=1,ltefield=InitialMutationRate"`
	TournamentSize                      int     `json:"tournament_size" yaml:"tournament_size" env:"TOURNAMENT_SIZE" validate:"gte=2"`
	DiversityWeight                     float64 `json:"diversity_weight" yaml:"diversity_weight" env:"DIVERSITY_WEIGHT" validate:"gte=0"`
	DiversityThreshold                  float64 `json:"diversity_threshold" yaml:"diversity_threshold" env:"DIVERSITY_THRESHOLD" validate:"gte=0,lte=1"`
	InitialPreferenceAdherentPercentage float64 `json:"initial_preference_adherent_percentage" yaml:"initial_preference_adherent_percentage" env:"INITIAL_PREFERENCE_ADHERENT_PERCENTAGE" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the stock search parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize:                      100,
		NumGenerations:                      1000,
		ElitePercentage:                     0.2,
		InitialMutationRate:                 0.3,
		FinalMutationRate:                   0.01,
		TournamentSize:                      3,
		DiversityWeight:                     2,
		DiversityThreshold:                  0.5,
		InitialPreferenceAdherentPercentage: 0.3,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every option against its documented range.
func (c Config) Validate() error {
	if err := structError(validate.Struct(c)); err != nil {
		return err
	}
	if c.TournamentSize > c.PopulationSize {
		return &ValidationError{
			Field:  "tournament_size",
			Reason: fmt.Sprintf("must not exceed population_size (%d > %d)", c.TournamentSize, c.PopulationSize),
		}
	}
	return nil
}

// EliteSize is floor(elite_percentage * population_size).
func (c Config) EliteSize() int {
	return int(c.ElitePercentage * float64(c.PopulationSize))
}

// Problem describes what is being scheduled.
type Problem struct {
	Subjects    []string              `json:"subjects" yaml:"subjects" validate:"required,min=1,unique,dive,required,ne=Free"`
	Days        []string              `json:"days" yaml:"days" validate:"required,min=1,unique,dive,required"`
	TimeSlots   []string              `json:"time_slots" yaml:"time_slots" validate:"required,min=1,unique,dive,required"`
	Preferences timetable.Preferences `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Rules       []fitness.RuleSpec    `json:"rules,omitempty" yaml:"rules,omitempty" validate:"dive"`
}

// Validate checks list uniqueness and that preferences only reference known
// subjects, days, and slots.
func (p Problem) Validate() error {
	if err := structError(validate.Struct(p)); err != nil {
		return err
	}

	days := toSet(p.Days)
	slots := toSet(p.TimeSlots)
	subjects := toSet(p.Subjects)
	for subject, byDay := range p.Preferences {
		if _, ok := subjects[subject]; !ok {
			return &ValidationError{Field: "preferences", Reason: "unknown subject " + subject}
		}
		for day, slot := range byDay {
			if _, ok := days[day]; !ok {
				return &ValidationError{Field: "preferences." + subject, Reason: "unknown day " + day}
			}
			if slot == "" {
				continue
			}
			if _, ok := slots[slot]; !ok {
				return &ValidationError{Field: "preferences." + subject + "." + day, Reason: "unknown time slot " + slot}
			}
		}
	}
	for _, spec := range p.Rules {
		if _, _, err := fitness.Lookup(spec.Name); err != nil {
			return &ValidationError{Field: "rules", Reason: err.Error()}
		}
	}
	return nil
}

// Model builds the fitness model for this problem.
func (p Problem) Model() (*fitness.Model, error) {
	return fitness.NewModelFromSpecs(p.Subjects, p.TimeSlots, p.Preferences, p.Rules)
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return err
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
