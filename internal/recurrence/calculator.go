package recurrence

import (
	"fmt"
	"math"

	"demand-matrix/internal/diag"
	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// Result is the monthly footprint of one task.
type Result struct {
	Occurrences float64 `json:"monthlyOccurrences"`
	Hours       float64 `json:"monthlyHours"`
}

// Calculator computes monthly occurrences and hours for single tasks.
type Calculator struct {
	Weekdays WeekdayStrategy
}

// NewCalculator returns a calculator using the average-month weekday estimate.
func NewCalculator() *Calculator {
	return &Calculator{Weekdays: AverageWeekdayStrategy{}}
}

// Calculate evaluates one task against one month. It never panics: any internal
// fault yields a zero result and a diagnostic so the caller can continue.
func (c *Calculator) Calculate(t tasks.Task, p period.Period) (res Result, d *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", t.ID).Str("period", p.Key).Interface("panic", r).Msg("Recurrence calculation failed")
			fault := diag.Fail("recurrence", t.ID, "calculation fault in %s: %v", p.Key, r)
			res, d = Result{}, &fault
		}
	}()

	occ, err := c.occurrences(t, p)
	if err != nil {
		w := diag.Warn("recurrence", t.ID, "%v", err)
		return Result{}, &w
	}
	if occ < 0 || math.IsNaN(occ) {
		occ = 0
	}

	hours := t.EstimatedHours * occ
	if hours < 0 || math.IsNaN(hours) {
		hours = 0
	}
	return Result{Occurrences: occ, Hours: hours}, nil
}

func (c *Calculator) occurrences(t tasks.Task, p period.Period) (float64, error) {
	r := t.Recurrence

	if t.OneTime {
		if r.DueDate != nil && p.Contains(r.DueDate.UTC()) {
			return 1, nil
		}
		return 0, nil
	}

	switch r.Type {
	case tasks.Weekly:
		return c.weekdays().Occurrences(r.Weekdays, r.EffectiveInterval(), p), nil
	case tasks.Biweekly:
		return c.weekdays().Occurrences(r.Weekdays, r.EffectiveInterval()*2, p), nil
	case tasks.Monthly:
		return monthlyOccurrences(r, p), nil
	case tasks.Annual:
		return annualOccurrences(r, p), nil
	default:
		return 0, fmt.Errorf("unknown recurrence type %q", r.Type)
	}
}

func (c *Calculator) weekdays() WeekdayStrategy {
	if c.Weekdays == nil {
		return AverageWeekdayStrategy{}
	}
	return c.Weekdays
}

func monthlyOccurrences(r tasks.Recurrence, p period.Period) float64 {
	if r.DayOfMonth > 0 && r.DayOfMonth > p.Days() {
		return 0
	}

	interval := r.EffectiveInterval()
	if interval == 1 {
		return 1
	}

	// Month offset from the due-date month, or from January 1970 without one.
	baseline := period.MonthIndex(unixEpoch)
	if r.DueDate != nil {
		baseline = period.MonthIndex(r.DueDate.UTC())
	}
	offset := p.MonthIndex() - baseline
	if mod(offset, interval) == 0 {
		return 1
	}
	return 0
}

func annualOccurrences(r tasks.Recurrence, p period.Period) float64 {
	var month int
	switch {
	case r.MonthOfYear >= 1 && r.MonthOfYear <= 12:
		month = r.MonthOfYear
	case r.DueDate != nil:
		month = int(r.DueDate.UTC().Month())
	default:
		return 0
	}

	// Compare 0-based, the way the month axis indexes months.
	if month-1 != int(p.Month())-1 {
		return 0
	}

	interval := r.EffectiveInterval()
	if interval > 1 && r.DueDate != nil {
		if mod(p.Start.Year()-r.DueDate.UTC().Year(), interval) != 0 {
			return 0
		}
	}
	return 1
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
