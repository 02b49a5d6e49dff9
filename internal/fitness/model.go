package fitness

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/cwbudde/evotimetable/internal/timetable"
	"golang.org/x/sync/errgroup"
)

// BaseScore keeps fitness positive for typical candidates. Only ranking matters.
const BaseScore = 1000.0

type weightedRule struct {
	rule   Rule
	weight float64
}

// Model is an ordered set of weighted penalty and reward rules bound to one problem.
type Model struct {
	subjects  []string
	slots     []string
	prefs     timetable.Preferences
	penalties []weightedRule
	rewards   []weightedRule
}

// NewModel creates an empty model. Register rules before evaluating.
func NewModel(subjects, slots []string, prefs timetable.Preferences) *Model {
	return &Model{
		subjects: subjects,
		slots:    slots,
		prefs:    prefs,
	}
}

// NewDefaultModel creates a model with the default rule catalog.
func NewDefaultModel(subjects, slots []string, prefs timetable.Preferences) *Model {
	m, err := NewModelFromSpecs(subjects, slots, prefs, DefaultRuleSpecs())
	if err != nil {
		// Default specs only reference built-in rules.
		panic(err)
	}
	return m
}

// NewModelFromSpecs builds a model from named rules. An empty spec list
// selects the default catalog.
func NewModelFromSpecs(subjects, slots []string, prefs timetable.Preferences, specs []RuleSpec) (*Model, error) {
	if len(specs) == 0 {
		specs = DefaultRuleSpecs()
	}
	m := NewModel(subjects, slots, prefs)
	for _, spec := range specs {
		if !spec.IsEnabled() {
			continue
		}
		rule, kind, err := Lookup(spec.Name)
		if err != nil {
			return nil, err
		}
		if spec.Weight < 0 {
			return nil, fmt.Errorf("rule %s: weight must be >= 0, got %v", spec.Name, spec.Weight)
		}
		switch kind {
		case KindPenalty:
			m.RegisterPenalty(rule, spec.Weight)
		case KindReward:
			m.RegisterReward(rule, spec.Weight)
		}
	}
	return m, nil
}

// RegisterPenalty appends a penalty rule; its weighted score is subtracted.
func (m *Model) RegisterPenalty(rule Rule, weight float64) {
	m.penalties = append(m.penalties, weightedRule{rule: rule, weight: weight})
}

// RegisterReward appends a reward rule; its weighted score is added.
func (m *Model) RegisterReward(rule Rule, weight float64) {
	m.rewards = append(m.rewards, weightedRule{rule: rule, weight: weight})
}

// Evaluate returns the fitness of t, or -Inf if t is structurally invalid.
func (m *Model) Evaluate(t *timetable.Timetable) float64 {
	if !timetable.IsValid(t, m.subjects, m.slots) {
		return math.Inf(-1)
	}
	score := BaseScore
	for _, p := range m.penalties {
		score -= p.weight * p.rule.Calculate(t, m.prefs, m.subjects, m.slots)
	}
	for _, r := range m.rewards {
		score += r.weight * r.rule.Calculate(t, m.prefs, m.subjects, m.slots)
	}
	return score
}

// EvaluateAll scores every individual using up to workers goroutines.
// Scores are index-aligned with population and all are computed before
// returning. workers <= 0 uses GOMAXPROCS.
func (m *Model) EvaluateAll(ctx context.Context, population []*timetable.Timetable, workers int) ([]float64, error) {
	scores := make([]float64, len(population))
	if workers == 1 || len(population) < 2 {
		for i, ind := range population {
			scores[i] = m.Evaluate(ind)
		}
		return scores, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ind := range population {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			scores[i] = m.Evaluate(ind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to evaluate population: %w", err)
	}
	return scores, nil
}

// RuleScore is one rule's contribution to a fitness value.
type RuleScore struct {
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// Breakdown explains a fitness value rule by rule.
type Breakdown struct {
	Valid   bool        `json:"valid"`
	Fitness float64     `json:"fitness"`
	Rules   []RuleScore `json:"rules,omitempty"`
}

// Breakdown evaluates t and reports each rule's contribution in registration order.
func (m *Model) Breakdown(t *timetable.Timetable) Breakdown {
	if !timetable.IsValid(t, m.subjects, m.slots) {
		return Breakdown{Valid: false, Fitness: math.Inf(-1)}
	}
	b := Breakdown{Valid: true, Fitness: BaseScore}
	for _, p := range m.penalties {
		raw := p.rule.Calculate(t, m.prefs, m.subjects, m.slots)
		b.Fitness -= p.weight * raw
		b.Rules = append(b.Rules, RuleScore{Name: p.rule.Name(), Kind: KindPenalty, Raw: raw, Weight: p.weight, Weighted: -p.weight * raw})
	}
	for _, r := range m.rewards {
		raw := r.rule.Calculate(t, m.prefs, m.subjects, m.slots)
		b.Fitness += r.weight * raw
		b.Rules = append(b.Rules, RuleScore{Name: r.rule.Name(), Kind: KindReward, Raw: raw, Weight: r.weight, Weighted: r.weight * raw})
	}
	return b
}
