package matrix

import (
	"context"
	"strings"
	"time"

	"demand-matrix/internal/period"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"
)

const (
	auditSkillID = "5b1d9c4e-2f7a-4c1e-9a53-0d6f2e8b7a10"
	taxSkillID   = "a0c4e7d2-91b3-4f58-8e26-3c7d5f1b9e42"
	staffAliceID = "0f3e6a9b-7c24-4d1e-b85a-2e9c4f6d8a31"
	staffBobID   = "c7a2e5f8-3b19-4d60-a4e7-9f1c2b8d6e53"
	acmeID       = "3d8b1f6a-5e27-4c90-b1a4-7e2f9c5d0b68"
	globexID     = "e91f4c2a-6d38-4b75-9c0e-1a7b3f5d8e24"
)

var fixedNow = func() time.Time { return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC) }

// directory is an in-memory resolve.Lookup.
type directory map[resolve.Kind]map[string]string

func (d directory) LookupName(_ context.Context, kind resolve.Kind, id string) (string, error) {
	if name, ok := d[kind][id]; ok {
		return name, nil
	}
	return "", resolve.ErrNotFound
}

func (d directory) LookupID(_ context.Context, kind resolve.Kind, name string) (string, error) {
	for id, n := range d[kind] {
		if strings.EqualFold(n, name) {
			return id, nil
		}
	}
	return "", resolve.ErrNotFound
}

func (d directory) ListNames(_ context.Context, kind resolve.Kind) (map[string]string, error) {
	out := make(map[string]string, len(d[kind]))
	for id, name := range d[kind] {
		out[id] = name
	}
	return out, nil
}

func testDirectory() directory {
	return directory{
		resolve.Skill: {auditSkillID: "Audit", taxSkillID: "Tax"},
		resolve.Staff: {staffAliceID: "Alice Moreau", staffBobID: "Bob Iyer"},
		resolve.Client: {
			acmeID:   "Acme",
			globexID: "Globex",
		},
	}
}

func testResolver() *resolve.Service {
	return resolve.NewService(testDirectory(), resolve.Options{Concurrency: 4, Clock: fixedNow})
}

func months(keys ...string) []period.ForecastPeriod {
	out := make([]period.ForecastPeriod, len(keys))
	for i, k := range keys {
		out[i] = period.ForecastPeriod{Key: k}
	}
	return out
}

func weekly(id, client string, hours float64, skills []string, weekdays ...int) tasks.Task {
	return tasks.Task{
		ID:             id,
		Name:           "Task " + id,
		ClientID:       client,
		RequiredSkills: skills,
		EstimatedHours: hours,
		Recurrence:     tasks.Recurrence{Type: tasks.Weekly, Interval: 1, Weekdays: weekdays},
	}
}

func monthly(id, client string, hours float64, skills []string, day int) tasks.Task {
	return tasks.Task{
		ID:             id,
		Name:           "Task " + id,
		ClientID:       client,
		RequiredSkills: skills,
		EstimatedHours: hours,
		Recurrence:     tasks.Recurrence{Type: tasks.Monthly, Interval: 1, DayOfMonth: day},
	}
}

func withStaff(t tasks.Task, staffID string) tasks.Task {
	t.PreferredStaffID = staffID
	return t
}

// sampleTasks covers two clients, two skills, a multi-skill task and staff assignments.
func sampleTasks() []tasks.Task {
	return []tasks.Task{
		withStaff(weekly("w1", acmeID, 4, []string{auditSkillID}, 2), staffAliceID),
		monthly("m1", acmeID, 10, []string{"Tax"}, 15),
		withStaff(monthly("m2", globexID, 6, []string{auditSkillID, taxSkillID}, 1), staffBobID),
		{
			ID: "a1", Name: "Year-end close", ClientID: globexID,
			RequiredSkills: []string{"audit"}, EstimatedHours: 20,
			Recurrence: tasks.Recurrence{Type: tasks.Annual, Interval: 1, MonthOfYear: 2},
		},
	}
}
