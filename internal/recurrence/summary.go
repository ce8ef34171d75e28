package recurrence

import (
	"fmt"
	"strings"
	"time"

	"demand-matrix/internal/tasks"
)

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var unixEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// PatternName returns the grouping label used by drill-down recurrence summaries.
func PatternName(t tasks.Task) string {
	if t.OneTime {
		return "one-time"
	}
	if t.Recurrence.Type == "" {
		return "unknown"
	}
	return string(t.Recurrence.Type)
}

// Summarize renders a short human-readable description of a task's recurrence.
func Summarize(t tasks.Task) string {
	r := t.Recurrence
	if t.OneTime {
		if r.DueDate == nil {
			return "One-time"
		}
		return fmt.Sprintf("One-time (%s)", r.DueDate.UTC().Format("2006-01-02"))
	}

	interval := r.EffectiveInterval()
	switch r.Type {
	case tasks.Weekly, tasks.Biweekly:
		weeks := interval
		if r.Type == tasks.Biweekly {
			weeks *= 2
		}
		base := "Weekly"
		if weeks > 1 {
			base = fmt.Sprintf("Every %d weeks", weeks)
		}
		days := ValidWeekdays(r.Weekdays)
		if len(days) == 0 {
			return base
		}
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = weekdayNames[d]
		}
		return fmt.Sprintf("%s (%s)", base, strings.Join(names, ", "))
	case tasks.Monthly:
		base := "Monthly"
		if interval > 1 {
			base = fmt.Sprintf("Every %d months", interval)
		}
		if r.DayOfMonth > 0 {
			return fmt.Sprintf("%s on day %d", base, r.DayOfMonth)
		}
		return base
	case tasks.Annual:
		base := "Annually"
		if interval > 1 {
			base = fmt.Sprintf("Every %d years", interval)
		}
		switch {
		case r.MonthOfYear >= 1 && r.MonthOfYear <= 12:
			return fmt.Sprintf("%s in %s", base, time.Month(r.MonthOfYear))
		case r.DueDate != nil:
			return fmt.Sprintf("%s in %s", base, r.DueDate.UTC().Month())
		default:
			return base + " (unscheduled)"
		}
	default:
		return "Unknown recurrence"
	}
}
