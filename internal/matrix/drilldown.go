package matrix

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCellNotFound is returned when a drill-down targets a cell absent from the matrix.
var ErrCellNotFound = errors.New("matrix cell not found")

// ClientBreakdown groups a cell's hours by client.
type ClientBreakdown struct {
	ClientID       string  `json:"clientId"`
	ClientName     string  `json:"clientName"`
	Hours          float64 `json:"hours"`
	TaskCount      int     `json:"taskCount"`
	RecurringTasks int     `json:"recurringTasks"`
	OneTimeTasks   int     `json:"oneTimeTasks"`
}

// PatternBreakdown groups a cell's hours by recurrence type.
type PatternBreakdown struct {
	Pattern    string  `json:"pattern"`
	TaskCount  int     `json:"taskCount"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
}

// StaffTotal is the share of a cell assigned to one preferred staff member.
type StaffTotal struct {
	StaffID   string  `json:"staffId"`
	StaffName string  `json:"staffName"`
	Role      string  `json:"role,omitempty"`
	TaskCount int     `json:"taskCount"`
	Hours     float64 `json:"hours"`
}

// StaffCoverage summarises preferred-staff assignment within a cell.
type StaffCoverage struct {
	WithPreferredStaff    int          `json:"withPreferredStaff"`
	WithoutPreferredStaff int          `json:"withoutPreferredStaff"`
	AssignedHours         float64      `json:"assignedHours"`
	UnassignedHours       float64      `json:"unassignedHours"`
	CoveragePercent       float64      `json:"coveragePercent"`
	ByStaff               []StaffTotal `json:"byStaff"`
}

// DrillDownResult is the read-only reshaping of one (skill, month) cell.
type DrillDownResult struct {
	Skill       string             `json:"skill"`
	PeriodKey   string             `json:"periodKey"`
	PeriodLabel string             `json:"periodLabel"`
	DemandHours float64            `json:"demandHours"`
	TaskCount   int                `json:"taskCount"`
	ClientCount int                `json:"clientCount"`
	Clients     []ClientBreakdown  `json:"clients"`
	Tasks       []TaskEntry        `json:"tasks"`
	Patterns    []PatternBreakdown `json:"recurrencePatterns"`
	Staff       StaffCoverage      `json:"staffCoverage"`
}

// DrillDown reshapes the cell for skill and periodKey. Hours are never recomputed here.
func DrillDown(m Matrix, skill, periodKey string) (*DrillDownResult, error) {
	dp, ok := m.Cell(skill, periodKey)
	if !ok {
		return nil, fmt.Errorf("%w: skill %q in period %s", ErrCellNotFound, skill, periodKey)
	}

	return &DrillDownResult{
		Skill:       dp.Skill,
		PeriodKey:   dp.PeriodKey,
		PeriodLabel: dp.PeriodLabel,
		DemandHours: dp.DemandHours,
		TaskCount:   dp.TaskCount,
		ClientCount: dp.ClientCount,
		Clients:     clientBreakdown(dp.Tasks),
		Tasks:       taskBreakdown(dp.Tasks),
		Patterns:    patternBreakdown(dp.Tasks, dp.DemandHours),
		Staff:       staffCoverage(dp.Tasks),
	}, nil
}

func clientBreakdown(entries []TaskEntry) []ClientBreakdown {
	index := make(map[string]int)
	var out []ClientBreakdown

	for _, e := range entries {
		i, ok := index[e.ClientID]
		if !ok {
			i = len(out)
			index[e.ClientID] = i
			out = append(out, ClientBreakdown{ClientID: e.ClientID, ClientName: e.ClientName})
		}
		out[i].Hours += e.MonthlyHours
		out[i].TaskCount++
		if e.OneTime {
			out[i].OneTimeTasks++
		} else {
			out[i].RecurringTasks++
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Hours != out[b].Hours {
			return out[a].Hours > out[b].Hours
		}
		return out[a].ClientName < out[b].ClientName
	})
	return out
}

// taskBreakdown lists entries with preferred staff first, then by descending hours.
func taskBreakdown(entries []TaskEntry) []TaskEntry {
	out := append([]TaskEntry(nil), entries...)
	sort.SliceStable(out, func(a, b int) bool {
		sa, sb := out[a].HasPreferredStaff(), out[b].HasPreferredStaff()
		if sa != sb {
			return sa
		}
		return out[a].MonthlyHours > out[b].MonthlyHours
	})
	return out
}

func patternBreakdown(entries []TaskEntry, total float64) []PatternBreakdown {
	index := make(map[string]int)
	var out []PatternBreakdown

	for _, e := range entries {
		i, ok := index[e.RecurrencePattern]
		if !ok {
			i = len(out)
			index[e.RecurrencePattern] = i
			out = append(out, PatternBreakdown{Pattern: e.RecurrencePattern})
		}
		out[i].TaskCount++
		out[i].Hours += e.MonthlyHours
	}

	for i := range out {
		if total > 0 {
			out[i].Percentage = out[i].Hours / total * 100
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Hours != out[b].Hours {
			return out[a].Hours > out[b].Hours
		}
		return out[a].Pattern < out[b].Pattern
	})
	return out
}

func staffCoverage(entries []TaskEntry) StaffCoverage {
	var cov StaffCoverage
	index := make(map[string]int)

	for _, e := range entries {
		if !e.HasPreferredStaff() {
			cov.WithoutPreferredStaff++
			cov.UnassignedHours += e.MonthlyHours
			continue
		}
		cov.WithPreferredStaff++
		cov.AssignedHours += e.MonthlyHours

		i, ok := index[e.PreferredStaffID]
		if !ok {
			i = len(cov.ByStaff)
			index[e.PreferredStaffID] = i
			cov.ByStaff = append(cov.ByStaff, StaffTotal{
				StaffID:   e.PreferredStaffID,
				StaffName: e.PreferredStaffName,
				Role:      e.PreferredStaffRole,
			})
		}
		cov.ByStaff[i].TaskCount++
		cov.ByStaff[i].Hours += e.MonthlyHours
	}

	if n := cov.WithPreferredStaff + cov.WithoutPreferredStaff; n > 0 {
		cov.CoveragePercent = float64(cov.WithPreferredStaff) / float64(n) * 100
	}

	sort.SliceStable(cov.ByStaff, func(a, b int) bool {
		if cov.ByStaff[a].Hours != cov.ByStaff[b].Hours {
			return cov.ByStaff[a].Hours > cov.ByStaff[b].Hours
		}
		return cov.ByStaff[a].StaffName < cov.ByStaff[b].StaffName
	})
	return cov
}
