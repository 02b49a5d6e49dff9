package fitness

import "github.com/cwbudde/evotimetable/internal/timetable"

// PreferencePenalty counts subjects with at least one concrete preference
// where none of the preferred (day, slot) pairs is realized.
type PreferencePenalty struct{}

func (PreferencePenalty) Name() string { return "preference" }

func (PreferencePenalty) Calculate(t *timetable.Timetable, prefs timetable.Preferences, _, _ []string) float64 {
	var penalty float64
	for subject := range prefs {
		pairs := prefs.Pairs(subject, t.Days())
		if len(pairs) == 0 {
			continue
		}
		met := false
		for _, p := range pairs {
			if v, ok := t.Get(p[0], p[1]); ok && v == subject {
				met = true
				break
			}
		}
		if !met {
			penalty++
		}
	}
	return penalty
}

// SameDaySubjectPenalty adds count-1 for every subject repeated within a day.
type SameDaySubjectPenalty struct{}

func (SameDaySubjectPenalty) Name() string { return "same_day_subject" }

func (SameDaySubjectPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, _, _ []string) float64 {
	var penalty float64
	for _, day := range t.Days() {
		for _, count := range dayCounts(t, day) {
			if count > 1 {
				penalty += float64(count - 1)
			}
		}
	}
	return penalty
}

// SubjectExhaustionPenalty counts configured subjects never scheduled.
type SubjectExhaustionPenalty struct{}

func (SubjectExhaustionPenalty) Name() string { return "subject_exhaustion" }

func (SubjectExhaustionPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, subjects, _ []string) float64 {
	used := t.UsedSubjects()
	var missing float64
	for _, s := range subjects {
		if _, ok := used[s]; !ok {
			missing++
		}
	}
	return missing
}

// BalancePenalty is the sum of squared deviations of per-subject counts from their mean.
type BalancePenalty struct{}

func (BalancePenalty) Name() string { return "balance" }

func (BalancePenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, subjects, _ []string) float64 {
	if len(subjects) == 0 {
		return 0
	}
	counts := t.SubjectCounts()
	var total float64
	for _, s := range subjects {
		total += float64(counts[s])
	}
	mean := total / float64(len(subjects))

	var penalty float64
	for _, s := range subjects {
		d := float64(counts[s]) - mean
		penalty += d * d
	}
	return penalty
}

// ConsecutiveClassesPenalty penalizes runs of non-Free slots longer than MaxRun.
// Every slot past MaxRun in a run adds the run length so far minus MaxRun.
type ConsecutiveClassesPenalty struct {
	MaxRun int
}

func (ConsecutiveClassesPenalty) Name() string { return "consecutive_classes" }

func (p ConsecutiveClassesPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, _, _ []string) float64 {
	var penalty float64
	for _, day := range t.Days() {
		run := 0
		for _, v := range t.DayValues(day) {
			if v != timetable.Free {
				run++
			} else {
				run = 0
			}
			if run > p.MaxRun {
				penalty += float64(run - p.MaxRun)
			}
		}
	}
	return penalty
}

// FreeTimeDistributionPenalty adds, per day, the spread between the largest
// and smallest gap separating consecutive Free slots.
type FreeTimeDistributionPenalty struct{}

func (FreeTimeDistributionPenalty) Name() string { return "free_time_distribution" }

func (FreeTimeDistributionPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, _, _ []string) float64 {
	var penalty float64
	for _, day := range t.Days() {
		var free []int
		for i, v := range t.DayValues(day) {
			if v == timetable.Free {
				free = append(free, i)
			}
		}
		if len(free) < 2 {
			continue
		}
		minGap, maxGap := free[1]-free[0], free[1]-free[0]
		for i := 2; i < len(free); i++ {
			gap := free[i] - free[i-1]
			minGap = min(minGap, gap)
			maxGap = max(maxGap, gap)
		}
		penalty += float64(maxGap - minGap)
	}
	return penalty
}

// OverallocationPenalty counts scheduled slots beyond one per configured subject.
type OverallocationPenalty struct{}

func (OverallocationPenalty) Name() string { return "overallocation" }

func (OverallocationPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, subjects, _ []string) float64 {
	allocated := 0
	for _, v := range t.Values() {
		if v != timetable.Free {
			allocated++
		}
	}
	return float64(max(0, allocated-len(subjects)))
}

// WeeklyOccurrencePenalty adds occurrences-1 for each subject scheduled more than once overall.
type WeeklyOccurrencePenalty struct{}

func (WeeklyOccurrencePenalty) Name() string { return "weekly_occurrence" }

func (WeeklyOccurrencePenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, subjects, _ []string) float64 {
	counts := t.SubjectCounts()
	var penalty float64
	for _, s := range subjects {
		if counts[s] > 1 {
			penalty += float64(counts[s] - 1)
		}
	}
	return penalty
}

// DailyLoadPenalty penalizes days scheduling more classes than an even spread
// of subjects over the week would need, quadratically in the excess.
type DailyLoadPenalty struct{}

func (DailyLoadPenalty) Name() string { return "daily_load" }

func (DailyLoadPenalty) Calculate(t *timetable.Timetable, _ timetable.Preferences, subjects, slots []string) float64 {
	days := len(t.Days())
	if days == 0 {
		return 0
	}
	maxLoad := (len(subjects) + days - 1) / days
	maxLoad = min(maxLoad, len(slots))

	var penalty float64
	for _, day := range t.Days() {
		load := 0
		for _, v := range t.DayValues(day) {
			if v != timetable.Free {
				load++
			}
		}
		if load > maxLoad {
			excess := float64(load - maxLoad)
			penalty += excess * excess
		}
	}
	return penalty
}

func dayCounts(t *timetable.Timetable, day string) map[string]int {
	counts := make(map[string]int)
	for _, v := range t.DayValues(day) {
		if v != timetable.Free {
			counts[v]++
		}
	}
	return counts
}
