package fitness

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cwbudde/evotimetable/internal/timetable"
)

// Rule scores one aspect of a timetable. Calculate must be pure: the same
// inputs always produce the same non-negative score.
type Rule interface {
	Name() string
	Calculate(t *timetable.Timetable, prefs timetable.Preferences, subjects, slots []string) float64
}

// Kind tells whether a rule's score is subtracted or added.
type Kind string

const (
	KindPenalty Kind = "penalty"
	KindReward  Kind = "reward"
)

var (
	ErrRuleExists   = errors.New("rule already registered")
	ErrRuleNotFound = errors.New("rule not found")
)

type registeredRule struct {
	kind Kind
	rule Rule
}

var ruleRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredRule
}{
	m: make(map[string]registeredRule),
}

func init() {
	for _, r := range []Rule{
		PreferencePenalty{},
		SameDaySubjectPenalty{},
		SubjectExhaustionPenalty{},
		BalancePenalty{},
		ConsecutiveClassesPenalty{MaxRun: 2},
		FreeTimeDistributionPenalty{},
		OverallocationPenalty{},
		WeeklyOccurrencePenalty{},
		DailyLoadPenalty{},
	} {
		mustRegister(KindPenalty, r)
	}
	for _, r := range []Rule{
		PreferredSlotReward{},
		NoSameDaySubjectReward{},
	} {
		mustRegister(KindReward, r)
	}
}

// RegisterRule makes a rule available by name to NewModelFromSpecs.
func RegisterRule(kind Kind, rule Rule) error {
	if rule == nil {
		return errors.New("rule is required")
	}
	if rule.Name() == "" {
		return errors.New("rule name is required")
	}
	if kind != KindPenalty && kind != KindReward {
		return fmt.Errorf("unknown rule kind: %s", kind)
	}

	ruleRegistry.mu.Lock()
	defer ruleRegistry.mu.Unlock()

	if _, exists := ruleRegistry.m[rule.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.Name())
	}
	ruleRegistry.m[rule.Name()] = registeredRule{kind: kind, rule: rule}
	return nil
}

func mustRegister(kind Kind, rule Rule) {
	if err := RegisterRule(kind, rule); err != nil {
		panic(err)
	}
}

// Lookup returns a registered rule and its kind.
func Lookup(name string) (Rule, Kind, error) {
	ruleRegistry.mu.RLock()
	entry, ok := ruleRegistry.m[name]
	ruleRegistry.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	return entry.rule, entry.kind, nil
}

// Names lists every registered rule name in sorted order.
func Names() []string {
	ruleRegistry.mu.RLock()
	defer ruleRegistry.mu.RUnlock()

	names := make([]string, 0, len(ruleRegistry.m))
	for name := range ruleRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RuleSpec selects a registered rule and its weight.
type RuleSpec struct {
	Name    string  `yaml:"name" json:"name" validate:"required"`
	Weight  float64 `yaml:"weight" json:"weight" validate:"gte=0"`
	Enabled *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled treats a missing Enabled field as true.
func (s RuleSpec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DefaultRuleSpecs is the canonical catalog used when a problem names no rules.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{Name: "preference", Weight: 5},
		{Name: "same_day_subject", Weight: 5},
		{Name: "subject_exhaustion", Weight: 5},
		{Name: "balance", Weight: 10},
		{Name: "consecutive_classes", Weight: 4},
		{Name: "free_time_distribution", Weight: 3},
		{Name: "preferred_slot", Weight: 5},
		{Name: "no_same_day_subject", Weight: 2},
	}
}
