package recurrence

import (
	"sort"

	"demand-matrix/internal/period"
)

const (
	// AverageDaysPerMonth is the fixed month length used by the weekday estimate.
	// The estimate is period-independent on purpose: a Tuesday task weighs the
	// same in February as in March. Swap the WeekdayStrategy for calendar-exact counts.
	AverageDaysPerMonth = 30.44
	// LegacyWeeksPerMonth is used for weekly tasks that name no valid weekday.
	LegacyWeeksPerMonth = 4.33
)

// WeekdayStrategy estimates how often a weekly task occurs in one month.
type WeekdayStrategy interface {
	Occurrences(weekdays []int, interval int, p period.Period) float64
}

// AverageWeekdayStrategy multiplies the weekday count by the average number of
// weeks in a month (30.44 / 7). It ignores the concrete period.
type AverageWeekdayStrategy struct{}

func (AverageWeekdayStrategy) Occurrences(weekdays []int, interval int, _ period.Period) float64 {
	if interval < 1 {
		interval = 1
	}
	valid := ValidWeekdays(weekdays)
	if len(valid) == 0 {
		return LegacyWeeksPerMonth / float64(interval)
	}
	return float64(len(valid)) * (AverageDaysPerMonth / 7) / float64(interval)
}

// CalendarWeekdayStrategy counts the actual weekday dates inside the period.
// Intervals above one scale the count down proportionally.
type CalendarWeekdayStrategy struct{}

func (CalendarWeekdayStrategy) Occurrences(weekdays []int, interval int, p period.Period) float64 {
	if interval < 1 {
		interval = 1
	}
	valid := ValidWeekdays(weekdays)
	if len(valid) == 0 {
		return LegacyWeeksPerMonth / float64(interval)
	}

	wanted := make(map[int]bool, len(valid))
	for _, d := range valid {
		wanted[d] = true
	}

	count := 0
	for day := p.Start; day.Before(p.End); day = day.AddDate(0, 0, 1) {
		if wanted[int(day.Weekday())] {
			count++
		}
	}
	return float64(count) / float64(interval)
}

// ValidWeekdays returns the distinct weekday numbers in [0,6], sorted.
// Out-of-range entries are discarded; an all-invalid set comes back empty.
func ValidWeekdays(weekdays []int) []int {
	seen := make(map[int]bool, len(weekdays))
	out := make([]int, 0, len(weekdays))
	for _, d := range weekdays {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
