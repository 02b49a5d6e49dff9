package fitness

import "github.com/cwbudde/evotimetable/internal/timetable"

// PreferredSlotReward counts (subject, day) preferences realized by the timetable.
type PreferredSlotReward struct{}

func (PreferredSlotReward) Name() string { return "preferred_slot" }

func (PreferredSlotReward) Calculate(t *timetable.Timetable, prefs timetable.Preferences, _, _ []string) float64 {
	var reward float64
	for subject := range prefs {
		for _, p := range prefs.Pairs(subject, t.Days()) {
			if v, ok := t.Get(p[0], p[1]); ok && v == subject {
				reward++
			}
		}
	}
	return reward
}

// NoSameDaySubjectReward is the fraction of days without a repeated subject.
type NoSameDaySubjectReward struct{}

func (NoSameDaySubjectReward) Name() string { return "no_same_day_subject" }

func (NoSameDaySubjectReward) Calculate(t *timetable.Timetable, _ timetable.Preferences, _, _ []string) float64 {
	days := t.Days()
	if len(days) == 0 {
		return 0
	}
	clean := 0
	for _, day := range days {
		repeated := false
		for _, count := range dayCounts(t, day) {
			if count > 1 {
				repeated = true
				break
			}
		}
		if !repeated {
			clean++
		}
	}
	return float64(clean) / float64(len(days))
}
