package matrix

import (
	"encoding/json"

	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"
)

// TaskEntry is one task's contribution to a (skill, month) cell.
type TaskEntry struct {
	ClientID           string  `json:"clientId"`
	ClientName         string  `json:"clientName"`
	TaskID             string  `json:"taskId"`
	TaskName           string  `json:"taskName"`
	Skill              string  `json:"skill"`
	EstimatedHours     float64 `json:"estimatedHours"`
	MonthlyOccurrences float64 `json:"monthlyOccurrences"`
	MonthlyHours       float64 `json:"monthlyHours"`
	RecurrencePattern  string  `json:"recurrencePattern"`
	RecurrenceSummary  string  `json:"recurrenceSummary"`
	OneTime            bool    `json:"oneTime,omitempty"`
	PreferredStaffID   string  `json:"preferredStaffId,omitempty"`
	PreferredStaffName string  `json:"preferredStaffName,omitempty"`
	PreferredStaffRole string  `json:"preferredStaffRole,omitempty"`
}

// HasPreferredStaff reports whether the entry is assigned to a preferred staff member.
func (e TaskEntry) HasPreferredStaff() bool {
	return e.PreferredStaffID != ""
}

// DataPoint is one populated (skill, month) cell.
// DemandHours, TaskCount and ClientCount are always derived from Tasks.
type DataPoint struct {
	Skill       string      `json:"skill"`
	PeriodKey   string      `json:"periodKey"`
	PeriodLabel string      `json:"periodLabel"`
	DemandHours float64     `json:"demandHours"`
	TaskCount   int         `json:"taskCount"`
	ClientCount int         `json:"clientCount"`
	Tasks       []TaskEntry `json:"taskBreakdown"`
}

// Recount derives the cell aggregates from its task breakdown.
func (dp DataPoint) Recount() DataPoint {
	var hours float64
	clients := make(map[string]bool, len(dp.Tasks))
	for _, e := range dp.Tasks {
		hours += e.MonthlyHours
		clients[e.ClientID] = true
	}
	dp.DemandHours = hours
	dp.TaskCount = len(dp.Tasks)
	dp.ClientCount = len(clients)
	return dp
}

func (dp DataPoint) clone() DataPoint {
	c := dp
	if dp.Tasks != nil {
		c.Tasks = append([]TaskEntry(nil), dp.Tasks...)
	}
	return c
}

// Totals are the matrix-level roll-ups.
type Totals struct {
	TotalDemand  float64 `json:"totalDemand"`
	TotalTasks   int     `json:"totalTasks"`
	TotalClients int     `json:"totalClients"`
}

// Matrix is the skill x month demand aggregate. Values are never mutated in place:
// filtering returns a new Matrix.
type Matrix struct {
	Periods    []period.Period `json:"periods"`
	Skills     []string        `json:"skills"`
	DataPoints []DataPoint     `json:"dataPoints"`
}

// Empty returns a structurally valid matrix with no data.
func Empty() Matrix {
	return Matrix{
		Periods:    []period.Period{},
		Skills:     []string{},
		DataPoints: []DataPoint{},
	}
}

// Totals sums the data points. Totals are never stored, so they cannot drift from the cells.
func (m Matrix) Totals() Totals {
	var t Totals
	clients := make(map[string]bool)
	for _, dp := range m.DataPoints {
		t.TotalDemand += dp.DemandHours
		t.TotalTasks += dp.TaskCount
		for _, e := range dp.Tasks {
			clients[e.ClientID] = true
		}
	}
	t.TotalClients = len(clients)
	return t
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	c := Matrix{}
	if m.Periods != nil {
		c.Periods = append([]period.Period(nil), m.Periods...)
	}
	if m.Skills != nil {
		c.Skills = append([]string(nil), m.Skills...)
	}
	if m.DataPoints != nil {
		c.DataPoints = make([]DataPoint, len(m.DataPoints))
		for i, dp := range m.DataPoints {
			c.DataPoints[i] = dp.clone()
		}
	}
	return c
}

// Cell returns the data point for a skill (matched case-insensitively) and period key.
func (m Matrix) Cell(skill, periodKey string) (DataPoint, bool) {
	folded := tasks.FoldName(skill)
	for _, dp := range m.DataPoints {
		if dp.PeriodKey == periodKey && tasks.FoldName(dp.Skill) == folded {
			return dp, true
		}
	}
	return DataPoint{}, false
}

// SkillTotals sums demand per skill across all periods, in skill-axis order.
func (m Matrix) SkillTotals() map[string]float64 {
	out := make(map[string]float64, len(m.Skills))
	for _, dp := range m.DataPoints {
		out[dp.Skill] += dp.DemandHours
	}
	return out
}

type matrixJSON struct {
	Periods    []period.Period `json:"periods"`
	Skills     []string        `json:"skills"`
	DataPoints []DataPoint     `json:"dataPoints"`
	Totals
}

// MarshalJSON includes the derived totals next to the cells.
func (m Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{
		Periods:    m.Periods,
		Skills:     m.Skills,
		DataPoints: m.DataPoints,
		Totals:     m.Totals(),
	})
}

// UnmarshalJSON reads a matrix, ignoring the derived totals.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Periods = raw.Periods
	m.Skills = raw.Skills
	m.DataPoints = raw.DataPoints
	return nil
}
