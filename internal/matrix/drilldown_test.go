package matrix

import (
	"errors"
	"math"
	"testing"
)

func TestDrillDown_ReshapesCell(t *testing.T) {
	m := sampleMatrix(t)

	got, err := DrillDown(m, "audit", "2025-02")
	if err != nil {
		t.Fatalf("DrillDown: %v", err)
	}

	weeklyHours := 4 * 30.44 / 7
	wantTotal := weeklyHours + 6 + 20
	if math.Abs(got.DemandHours-wantTotal) > tolerance {
		t.Errorf("DemandHours = %v, want %v", got.DemandHours, wantTotal)
	}
	if got.Skill != "Audit" || got.TaskCount != 3 || got.ClientCount != 2 {
		t.Errorf("header = %+v", got)
	}

	if len(got.Clients) != 2 || got.Clients[0].ClientName != "Globex" || got.Clients[0].Hours != 26 {
		t.Errorf("Clients = %+v", got.Clients)
	}

	// Assigned entries first, each group by descending hours.
	order := []string{"w1", "m2", "a1"}
	for i, id := range order {
		if got.Tasks[i].TaskID != id {
			t.Errorf("Tasks[%d] = %s, want %s", i, got.Tasks[i].TaskID, id)
		}
	}

	if len(got.Patterns) != 3 || got.Patterns[0].Pattern != "annual" {
		t.Errorf("Patterns = %+v", got.Patterns)
	}
	var pct float64
	for _, p := range got.Patterns {
		pct += p.Percentage
	}
	if math.Abs(pct-100) > 1e-6 {
		t.Errorf("pattern percentages sum to %v", pct)
	}

	cov := got.Staff
	if cov.WithPreferredStaff != 2 || cov.WithoutPreferredStaff != 1 {
		t.Errorf("coverage counts = %+v", cov)
	}
	if cov.UnassignedHours != 20 {
		t.Errorf("UnassignedHours = %v", cov.UnassignedHours)
	}
	if len(cov.ByStaff) != 2 || cov.ByStaff[0].StaffName != "Alice Moreau" {
		t.Errorf("ByStaff = %+v", cov.ByStaff)
	}
}

func TestDrillDown_MissingCell(t *testing.T) {
	m := sampleMatrix(t)

	cases := []struct{ skill, period string }{
		{"Payroll", "2025-01"},
		{"Audit", "2026-01"},
	}
	for _, c := range cases {
		_, err := DrillDown(m, c.skill, c.period)
		if !errors.Is(err, ErrCellNotFound) {
			t.Errorf("DrillDown(%s, %s) err = %v, want ErrCellNotFound", c.skill, c.period, err)
		}
	}
}

func TestDrillDown_DoesNotRecomputeHours(t *testing.T) {
	m := sampleMatrix(t)
	cell, ok := m.Cell("Tax", "2025-01")
	if !ok {
		t.Fatal("missing Tax/2025-01")
	}

	got, err := DrillDown(m, "Tax", "2025-01")
	if err != nil {
		t.Fatalf("DrillDown: %v", err)
	}
	if got.DemandHours != cell.DemandHours {
		t.Errorf("DemandHours = %v, want %v", got.DemandHours, cell.DemandHours)
	}
}
