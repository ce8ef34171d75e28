package tasks

import (
	"context"
	"time"

	"demand-matrix/internal/diag"
)

// RecurrenceType names the scheduling scheme of a recurring task.
type RecurrenceType string

const (
	Weekly   RecurrenceType = "weekly"
	Biweekly RecurrenceType = "biweekly"
	Monthly  RecurrenceType = "monthly"
	Annual   RecurrenceType = "annual"
)

// Recurrence describes when a task repeats.
type Recurrence struct {
	Type     RecurrenceType `json:"type" yaml:"type"`
	Interval int            `json:"interval,omitempty" yaml:"interval,omitempty"`
	// Weekdays uses 0=Sunday..6=Saturday.
	Weekdays    []int      `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	DayOfMonth  int        `json:"dayOfMonth,omitempty" yaml:"dayOfMonth,omitempty"`
	MonthOfYear int        `json:"monthOfYear,omitempty" yaml:"monthOfYear,omitempty"` // 1-based
	DueDate     *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
}

// EffectiveInterval returns the interval with non-positive values treated as 1.
func (r Recurrence) EffectiveInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Task is a recurring engagement definition owned by the task source.
// The engine treats it as immutable.
type Task struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	ClientID   string `json:"clientId" yaml:"clientId"`
	ClientName string `json:"clientName,omitempty" yaml:"clientName,omitempty"`

	// RequiredSkills holds raw references: UUIDs or display names, in task order.
	RequiredSkills []string   `json:"requiredSkills" yaml:"requiredSkills"`
	EstimatedHours float64    `json:"estimatedHours" yaml:"estimatedHours"`
	Recurrence     Recurrence `json:"recurrence" yaml:"recurrence"`

	// OneTime marks a non-recurring engagement placed once, in the month of Recurrence.DueDate.
	OneTime bool `json:"oneTime,omitempty" yaml:"oneTime,omitempty"`

	PreferredStaffID   string `json:"preferredStaffId,omitempty" yaml:"preferredStaffId,omitempty"`
	PreferredStaffName string `json:"preferredStaffName,omitempty" yaml:"preferredStaffName,omitempty"`
	PreferredStaffRole string `json:"preferredStaffRole,omitempty" yaml:"preferredStaffRole,omitempty"`

	// Skills is filled by Normalize; it is the classified form of RequiredSkills.
	Skills []Identifier `json:"-" yaml:"-"`
}

// HasPreferredStaff reports whether a preferred staff member is assigned.
func (t Task) HasPreferredStaff() bool {
	return t.PreferredStaffID != ""
}

// Scope narrows what a task source returns.
type Scope struct {
	ClientIDs []string
}

// Source supplies point-in-time snapshots of recurring task records.
type Source interface {
	ListTasks(ctx context.Context, scope Scope) ([]Task, error)
}

// ReportingSource is a Source that also says how the snapshot was obtained,
// such as a cached copy served while the upstream is down.
type ReportingSource interface {
	Source
	ListTasksWithDiagnostics(ctx context.Context, scope Scope) ([]Task, []diag.Diagnostic, error)
}

// List fetches from src, keeping its diagnostics when it reports any.
func List(ctx context.Context, src Source, scope Scope) ([]Task, []diag.Diagnostic, error) {
	if rs, ok := src.(ReportingSource); ok {
		return rs.ListTasksWithDiagnostics(ctx, scope)
	}
	ts, err := src.ListTasks(ctx, scope)
	return ts, nil, err
}
