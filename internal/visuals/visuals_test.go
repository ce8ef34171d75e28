package visuals

import (
	"strings"
	"testing"

	"demand-matrix/internal/matrix"
	"demand-matrix/internal/period"
)

func testMatrix(t *testing.T) matrix.Matrix {
	t.Helper()
	jan, _ := period.ParseKey("2025-01")
	feb, _ := period.ParseKey("2025-02")

	entry := func(client, task string, hours float64) matrix.TaskEntry {
		return matrix.TaskEntry{ClientID: client, TaskID: task, TaskName: task, MonthlyHours: hours, RecurrencePattern: "monthly"}
	}
	return matrix.Matrix{
		Periods: []period.Period{jan, feb},
		Skills:  []string{"Audit", "Tax"},
		DataPoints: []matrix.DataPoint{
			matrix.DataPoint{Skill: "Audit", PeriodKey: jan.Key, PeriodLabel: jan.Label, Tasks: []matrix.TaskEntry{entry("c1", "a", 10)}}.Recount(),
			matrix.DataPoint{Skill: "Audit", PeriodKey: feb.Key, PeriodLabel: feb.Label, Tasks: []matrix.TaskEntry{entry("c1", "a", 12.5)}}.Recount(),
			matrix.DataPoint{Skill: "Tax", PeriodKey: feb.Key, PeriodLabel: feb.Label, Tasks: []matrix.TaskEntry{entry("c2", "b", 4)}}.Recount(),
		},
	}
}

func TestGenerateDemandChart(t *testing.T) {
	chart := GenerateDemandChart(testMatrix(t), 0)

	for _, want := range []string{
		"xychart-beta",
		`x-axis ["Jan 2025", "Feb 2025"]`,
		"bar [10.0, 16.5]",
		"line [10.0, 12.5]",
		"line [0.0, 4.0]",
	} {
		if !strings.Contains(chart, want) {
			t.Errorf("chart missing %q:\n%s", want, chart)
		}
	}
}

func TestGenerateDemandChart_Empty(t *testing.T) {
	if got := GenerateDemandChart(matrix.Empty(), 0); got != "" {
		t.Errorf("expected empty chart, got %q", got)
	}
}

func TestGenerateSkillShareChart_GroupsOther(t *testing.T) {
	chart := GenerateSkillShareChart(testMatrix(t), 1)

	if !strings.Contains(chart, `"Audit" : 22.5`) {
		t.Errorf("missing Audit slice:\n%s", chart)
	}
	if !strings.Contains(chart, `"Other" : 4.0`) {
		t.Errorf("missing Other slice:\n%s", chart)
	}
}

func TestTopSkills(t *testing.T) {
	got := TopSkills(testMatrix(t), 5)
	if len(got) != 2 || got[0] != "Audit" || got[1] != "Tax" {
		t.Errorf("TopSkills = %v", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(testMatrix(t))

	for _, want := range []string{"Skill", "Jan 2025", "Audit", "Tax", "22.5", "26.5", "3 task entries across 2 clients"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if out := RenderTable(matrix.Empty()); !strings.Contains(out, "No demand") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRenderDrillDown(t *testing.T) {
	d, err := matrix.DrillDown(testMatrix(t), "audit", "2025-02")
	if err != nil {
		t.Fatal(err)
	}
	out := RenderDrillDown(d)
	if !strings.Contains(out, "Audit, Feb 2025: 12.5 hours") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "unassigned") {
		t.Errorf("expected unassigned task:\n%s", out)
	}
}
