package timetable

import "errors"

// ErrStructureMismatch is returned by operators that need two timetables with
// identical day/slot structure.
var ErrStructureMismatch = errors.New("timetable structure mismatch")

// IsValid reports whether t is structurally well formed: its schedule holds
// exactly its declared days, every day has exactly timeSlots as keys, and every
// value is a known subject or Free. It never panics on malformed input.
func IsValid(t *Timetable, subjects, timeSlots []string) bool {
	if t == nil {
		return false
	}
	if len(t.schedule) != len(t.days) {
		return false
	}

	known := make(map[string]struct{}, len(subjects)+1)
	for _, s := range subjects {
		known[s] = struct{}{}
	}
	known[Free] = struct{}{}

	for _, day := range t.days {
		row, ok := t.schedule[day]
		if !ok || len(row) != len(timeSlots) {
			return false
		}
		for _, slot := range timeSlots {
			subject, ok := row[slot]
			if !ok {
				return false
			}
			if _, ok := known[subject]; !ok {
				return false
			}
		}
	}
	return true
}

// SameStructure reports whether a and b have the same days and slot keys.
func SameStructure(a, b *Timetable) bool {
	if len(a.schedule) != len(b.schedule) {
		return false
	}
	for day, rowA := range a.schedule {
		rowB, ok := b.schedule[day]
		if !ok || len(rowA) != len(rowB) {
			return false
		}
		for slot := range rowA {
			if _, ok := rowB[slot]; !ok {
				return false
			}
		}
	}
	return true
}
