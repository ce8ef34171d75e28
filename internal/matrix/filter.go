package matrix

import (
	"time"

	"demand-matrix/internal/diag"
	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// StaffMode selects how preferred-staff assignments restrict a matrix.
type StaffMode int

const (
	// StaffAll applies no staff-based exclusion.
	StaffAll StaffMode = iota
	// StaffSpecific keeps entries whose preferred staff is in the set.
	StaffSpecific
	// StaffNone keeps only entries with no preferred staff.
	StaffNone
)

func (m StaffMode) String() string {
	switch m {
	case StaffSpecific:
		return "specific"
	case StaffNone:
		return "none"
	default:
		return "all"
	}
}

// StaffFilter is the preferred-staff part of a filter specification.
type StaffFilter struct {
	Mode              StaffMode
	StaffIDs          []string
	IncludeUnassigned bool
}

// NewStaffFilter derives the mode from raw inputs: a non-empty staff set means
// specific; otherwise the show-only-preferred flag means none; otherwise all.
func NewStaffFilter(staffIDs []string, includeUnassigned, showOnlyPreferred bool) StaffFilter {
	var ids []string
	for _, id := range staffIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	switch {
	case len(ids) > 0:
		return StaffFilter{Mode: StaffSpecific, StaffIDs: ids, IncludeUnassigned: includeUnassigned}
	case showOnlyPreferred:
		return StaffFilter{Mode: StaffNone}
	default:
		return StaffFilter{Mode: StaffAll}
	}
}

// FilterSpec narrows a matrix. Zero-valued fields are not applied.
type FilterSpec struct {
	// From and To bound the time window inclusively; periods overlapping it are kept.
	From time.Time
	To   time.Time
	// Skills are display names, compared case-insensitively.
	Skills []string
	// ClientIDs keep breakdown entries of these clients (matched by id or name).
	ClientIDs []string
	Staff     StaffFilter
}

// FilterResult carries a filtered matrix and its diagnostics.
// Valid is false when filtering failed and Matrix is the untouched input.
type FilterResult struct {
	Matrix   Matrix            `json:"matrix"`
	Warnings []diag.Diagnostic `json:"warnings,omitempty"`
	Valid    bool              `json:"valid"`
}

// Filter applies spec to m and returns a new matrix; m is never modified.
// No step adds periods, cells or hours, so totals of the result never exceed the input's.
func Filter(m Matrix, spec FilterSpec) (res FilterResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Matrix filter failed, returning input unchanged")
			res = FilterResult{
				Matrix:   m.Clone(),
				Warnings: []diag.Diagnostic{diag.Fail("filter", "", "filter failed: %v", r)},
				Valid:    false,
			}
		}
	}()

	out := m.Clone()

	// 1. Time window
	if !spec.From.IsZero() || !spec.To.IsZero() {
		out = filterWindow(out, spec.From, spec.To)
	}

	// 2. Skills
	if len(spec.Skills) > 0 {
		out = filterSkills(out, spec.Skills)
	}

	// 3. Clients
	if len(spec.ClientIDs) > 0 {
		set := foldSet(spec.ClientIDs)
		out = filterEntries(out, func(e TaskEntry) bool {
			return set[e.ClientID] || set[tasks.FoldName(e.ClientName)]
		})
	}

	// 4. Preferred staff
	switch spec.Staff.Mode {
	case StaffSpecific:
		set := foldSet(spec.Staff.StaffIDs)
		include := spec.Staff.IncludeUnassigned
		out = filterEntries(out, func(e TaskEntry) bool {
			if !e.HasPreferredStaff() {
				return include
			}
			return set[e.PreferredStaffID] || set[tasks.FoldName(e.PreferredStaffName)]
		})
	case StaffNone:
		out = filterEntries(out, func(e TaskEntry) bool {
			return !e.HasPreferredStaff()
		})
	}

	// 5. Totals are a pure function of out.DataPoints (Matrix.Totals).
	before, after := m.Totals(), out.Totals()
	log.Debug().
		Int("cellsBefore", len(m.DataPoints)).
		Int("cellsAfter", len(out.DataPoints)).
		Float64("demandBefore", before.TotalDemand).
		Float64("demandAfter", after.TotalDemand).
		Str("staffMode", spec.Staff.Mode.String()).
		Msg("Demand matrix filtered")

	return FilterResult{Matrix: out, Valid: true}
}

func filterWindow(m Matrix, from, to time.Time) Matrix {
	kept := make(map[string]bool, len(m.Periods))
	periods := make([]period.Period, 0, len(m.Periods))
	for _, p := range m.Periods {
		if p.Overlaps(from, to) {
			kept[p.Key] = true
			periods = append(periods, p)
		}
	}

	points := make([]DataPoint, 0, len(m.DataPoints))
	for _, dp := range m.DataPoints {
		if kept[dp.PeriodKey] {
			points = append(points, dp)
		}
	}

	m.Periods = periods
	m.DataPoints = points
	return m
}

func filterSkills(m Matrix, names []string) Matrix {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[tasks.FoldName(n)] = true
	}

	skills := make([]string, 0, len(m.Skills))
	for _, s := range m.Skills {
		if set[tasks.FoldName(s)] {
			skills = append(skills, s)
		}
	}

	points := make([]DataPoint, 0, len(m.DataPoints))
	for _, dp := range m.DataPoints {
		if set[tasks.FoldName(dp.Skill)] {
			points = append(points, dp)
		}
	}

	m.Skills = skills
	m.DataPoints = points
	return m
}

// filterEntries keeps the breakdown entries matching keep, recounts each cell
// from what is left and drops cells that become empty.
func filterEntries(m Matrix, keep func(TaskEntry) bool) Matrix {
	points := make([]DataPoint, 0, len(m.DataPoints))
	for _, dp := range m.DataPoints {
		entries := make([]TaskEntry, 0, len(dp.Tasks))
		for _, e := range dp.Tasks {
			if keep(e) {
				entries = append(entries, e)
			}
		}
		if len(entries) == 0 {
			continue
		}
		dp.Tasks = entries
		points = append(points, dp.Recount())
	}
	m.DataPoints = points
	return m
}

// foldSet indexes values both verbatim and folded so ids and names can be matched.
func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values)*2)
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = true
		set[tasks.FoldName(v)] = true
	}
	return set
}
