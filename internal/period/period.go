package period

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"demand-matrix/internal/diag"
)

// KeyLayout is the stable key format of a calendar period.
const KeyLayout = "2006-01"

// DefaultMaxPeriods bounds the month axis of a matrix.
const DefaultMaxPeriods = 24

// SynthesizedMonths is the number of months generated when no usable period is supplied.
const SynthesizedMonths = 12

// Period is one calendar month as a half-open [Start, End) range.
type Period struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SkillDemand is a demand entry already attached to a forecast period.
type SkillDemand struct {
	Skill string  `json:"skill" yaml:"skill"`
	Hours float64 `json:"hours,omitempty" yaml:"hours,omitempty"`
}

// ForecastPeriod is what the forecast-period source supplies: a month key,
// an optional label and any demand entries already known for that month.
type ForecastPeriod struct {
	Key    string        `json:"key" yaml:"key"`
	Label  string        `json:"label,omitempty" yaml:"label,omitempty"`
	Demand []SkillDemand `json:"demand,omitempty" yaml:"demand,omitempty"`
}

// Source supplies the forecast periods a matrix is built over.
type Source interface {
	ListPeriods(ctx context.Context) ([]ForecastPeriod, error)
}

// ForMonth returns the period containing t, normalized to UTC month boundaries.
func ForMonth(t time.Time) Period {
	start := SnapToStart(t)
	return Period{
		Key:   start.Format(KeyLayout),
		Label: start.Format("Jan 2006"),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// ParseKey parses a YYYY-MM key into its period.
func ParseKey(key string) (Period, error) {
	t, err := time.Parse(KeyLayout, strings.TrimSpace(key))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return ForMonth(t), nil
}

// SnapToStart normalizes a timestamp to midnight UTC on the first of its month.
func SnapToStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls in [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps reports whether the period intersects the inclusive window [from, to].
// A zero bound is open.
func (p Period) Overlaps(from, to time.Time) bool {
	if !from.IsZero() && !p.End.After(from) {
		return false
	}
	if !to.IsZero() && p.Start.After(to) {
		return false
	}
	return true
}

// Days returns the number of calendar days in the month.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours() / 24)
}

// Month returns the calendar month of the period.
func (p Period) Month() time.Month {
	return p.Start.Month()
}

// MonthIndex returns the absolute month count since January of year 0.
func (p Period) MonthIndex() int {
	return MonthIndex(p.Start)
}

// MonthIndex returns the absolute month count of t since January of year 0.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// Synthesize returns n consecutive month periods starting at the month of start.
func Synthesize(start time.Time, n int) []Period {
	periods := make([]Period, 0, n)
	current := SnapToStart(start)
	for i := 0; i < n; i++ {
		periods = append(periods, ForMonth(current))
		current = current.AddDate(0, 1, 0)
	}
	return periods
}

// BuildAxis turns forecast periods into a chronological, de-duplicated month axis.
// Unparsable keys are dropped with a diagnostic and the axis is capped at max entries.
func BuildAxis(supplied []ForecastPeriod, max int) ([]Period, []diag.Diagnostic) {
	if max <= 0 {
		max = DefaultMaxPeriods
	}

	var diags []diag.Diagnostic
	seen := make(map[string]bool)
	axis := make([]Period, 0, len(supplied))

	for _, fp := range supplied {
		p, err := ParseKey(fp.Key)
		if err != nil {
			diags = append(diags, diag.Warn("periods", fp.Key, "dropping period: %v", err))
			continue
		}
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		if label := strings.TrimSpace(fp.Label); label != "" {
			p.Label = label
		}
		axis = append(axis, p)
	}

	sort.Slice(axis, func(i, j int) bool {
		return axis[i].Start.Before(axis[j].Start)
	})

	if len(axis) > max {
		diags = append(diags, diag.Warn("periods", "", "period axis capped at %d of %d months", max, len(axis)))
		axis = axis[:max]
	}

	return axis, diags
}

// Keys returns the period keys in order.
func Keys(periods []Period) []string {
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = p.Key
	}
	return keys
}
