package timetable

import (
	"encoding/json"

	"github.com/samber/lo"
)

// Free marks a slot with no subject scheduled.
const Free = "Free"

// Schedule is the day -> slot -> subject document shape used for persistence.
type Schedule map[string]map[string]string

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for day, slots := range s {
		row := make(map[string]string, len(slots))
		for slot, subject := range slots {
			row[slot] = subject
		}
		out[day] = row
	}
	return out
}

// Timetable is one candidate assignment of subjects to day/time slots.
// Days and slots keep the configured order, which drives iteration order
// for operators (reproducibility) and positional rules.
type Timetable struct {
	days     []string
	slots    []string
	schedule Schedule
}

// New creates a timetable with every slot set to Free.
func New(days, slots []string) *Timetable {
	schedule := make(Schedule, len(days))
	for _, day := range days {
		row := make(map[string]string, len(slots))
		for _, slot := range slots {
			row[slot] = Free
		}
		schedule[day] = row
	}
	return &Timetable{
		days:     append([]string(nil), days...),
		slots:    append([]string(nil), slots...),
		schedule: schedule,
	}
}

// FromSchedule builds a timetable from a persisted document. The structure is
// copied as-is; a malformed document yields a timetable that fails IsValid.
func FromSchedule(days, slots []string, schedule Schedule) *Timetable {
	return &Timetable{
		days:     append([]string(nil), days...),
		slots:    append([]string(nil), slots...),
		schedule: schedule.Clone(),
	}
}

// Days returns the configured day order.
func (t *Timetable) Days() []string { return t.days }

// Slots returns the configured slot order.
func (t *Timetable) Slots() []string { return t.slots }

// Get returns the value assigned to (day, slot).
func (t *Timetable) Get(day, slot string) (string, bool) {
	row, ok := t.schedule[day]
	if !ok {
		return "", false
	}
	subject, ok := row[slot]
	return subject, ok
}

// Set assigns subject to (day, slot), creating the day row if needed.
func (t *Timetable) Set(day, slot, subject string) {
	row, ok := t.schedule[day]
	if !ok {
		row = make(map[string]string, len(t.slots))
		t.schedule[day] = row
	}
	row[slot] = subject
}

// Schedule returns a deep copy of the underlying document.
func (t *Timetable) Schedule() Schedule {
	return t.schedule.Clone()
}

// Clone returns an independent copy.
func (t *Timetable) Clone() *Timetable {
	return FromSchedule(t.days, t.slots, t.schedule)
}

// Values returns every assigned value in day/slot order. Missing cells are skipped.
func (t *Timetable) Values() []string {
	values := make([]string, 0, len(t.days)*len(t.slots))
	for _, day := range t.days {
		row := t.schedule[day]
		for _, slot := range t.slots {
			if subject, ok := row[slot]; ok {
				values = append(values, subject)
			}
		}
	}
	return values
}

// DayValues returns the values of one day in slot order.
func (t *Timetable) DayValues(day string) []string {
	row := t.schedule[day]
	values := make([]string, 0, len(t.slots))
	for _, slot := range t.slots {
		if subject, ok := row[slot]; ok {
			values = append(values, subject)
		}
	}
	return values
}

// UsedSubjects returns the set of non-Free values across the whole timetable.
func (t *Timetable) UsedSubjects() map[string]struct{} {
	used := make(map[string]struct{})
	for _, subject := range t.Values() {
		if subject != Free {
			used[subject] = struct{}{}
		}
	}
	return used
}

// SubjectCounts counts occurrences of each non-Free value.
func (t *Timetable) SubjectCounts() map[string]int {
	return lo.CountValues(lo.Filter(t.Values(), func(s string, _ int) bool {
		return s != Free
	}))
}

// SelfDiversity is the fraction of unique values among the timetable's own slots.
func (t *Timetable) SelfDiversity() float64 {
	values := t.Values()
	if len(values) == 0 {
		return 0
	}
	return float64(len(lo.Uniq(values))) / float64(len(values))
}

// DiversityBetween is the fraction of slots whose values differ from other.
func (t *Timetable) DiversityBetween(other *Timetable) float64 {
	a := t.Values()
	b := other.Values()
	if len(a) == 0 {
		return 0
	}
	n := min(len(a), len(b))
	differing := len(a) - n
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			differing++
		}
	}
	return float64(differing) / float64(len(a))
}

// MarshalJSON encodes the timetable as its schedule document.
func (t *Timetable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.schedule)
}
