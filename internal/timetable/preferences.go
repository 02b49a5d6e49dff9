package timetable

// Preferences maps subject -> day -> preferred slot. An empty slot means the
// subject has no preference that day; null values in JSON or YAML decode to it.
// Preferences are read-only once a run starts.
type Preferences map[string]map[string]string

// Preferred returns the preferred slot for subject on day, if any.
func (p Preferences) Preferred(subject, day string) (string, bool) {
	days, ok := p[subject]
	if !ok {
		return "", false
	}
	slot := days[day]
	return slot, slot != ""
}

// HasAny reports whether subject has a concrete preferred slot on at least one day.
func (p Preferences) HasAny(subject string) bool {
	for _, slot := range p[subject] {
		if slot != "" {
			return true
		}
	}
	return false
}

// Pairs returns the concrete (day, slot) preferences of subject in the given day order.
func (p Preferences) Pairs(subject string, days []string) [][2]string {
	var pairs [][2]string
	for _, day := range days {
		if slot, ok := p.Preferred(subject, day); ok {
			pairs = append(pairs, [2]string{day, slot})
		}
	}
	return pairs
}
