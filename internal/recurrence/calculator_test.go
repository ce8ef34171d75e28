package recurrence

import (
	"math"
	"testing"
	"time"

	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"
)

const tolerance = 1e-9

func mustPeriod(t *testing.T, key string) period.Period {
	t.Helper()
	p, err := period.ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey(%q): %v", key, err)
	}
	return p
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCalculate_WeekdayFormula(t *testing.T) {
	calc := NewCalculator()
	jan := mustPeriod(t, "2025-01")

	task := tasks.Task{
		ID: "t1", EstimatedHours: 5,
		Recurrence: tasks.Recurrence{Type: tasks.Weekly, Interval: 1, Weekdays: []int{1, 3, 5}},
	}
	res, d := calc.Calculate(task, jan)
	if d != nil {
		t.Fatalf("unexpected diagnostic: %v", d)
	}
	want := 5 * 3 * (30.44 / 7)
	if math.Abs(res.Hours-want) > tolerance {
		t.Errorf("Expected %.4f hours, got %.4f", want, res.Hours)
	}
	if math.Abs(res.Hours-65.2) > 0.1 {
		t.Errorf("Expected roughly 65.2 hours, got %.4f", res.Hours)
	}

	task.Recurrence.Interval = 2
	half, _ := calc.Calculate(task, jan)
	if math.Abs(half.Hours-want/2) > tolerance {
		t.Errorf("Expected interval 2 to halve the hours: got %.4f, want %.4f", half.Hours, want/2)
	}
}

func TestCalculate_WeekdayIsPeriodIndependent(t *testing.T) {
	calc := NewCalculator()
	task := tasks.Task{ID: "t1", EstimatedHours: 1, Recurrence: tasks.Recurrence{Type: tasks.Weekly, Weekdays: []int{2}}}

	feb, _ := calc.Calculate(task, mustPeriod(t, "2025-02"))
	mar, _ := calc.Calculate(task, mustPeriod(t, "2025-03"))
	if feb.Occurrences != mar.Occurrences {
		t.Errorf("Expected identical estimates across months, got %f vs %f", feb.Occurrences, mar.Occurrences)
	}
}

func TestCalculate_WeeklyFallbacks(t *testing.T) {
	calc := NewCalculator()
	jan := mustPeriod(t, "2025-01")

	tests := []struct {
		name     string
		rec      tasks.Recurrence
		expected float64
	}{
		{"NoWeekdays", tasks.Recurrence{Type: tasks.Weekly, Interval: 1}, 4.33},
		{"AllInvalid", tasks.Recurrence{Type: tasks.Weekly, Interval: 1, Weekdays: []int{7, -1}}, 4.33},
		{"MixedKeepsValid", tasks.Recurrence{Type: tasks.Weekly, Interval: 1, Weekdays: []int{2, 9}}, 30.44 / 7},
		{"DuplicateWeekdays", tasks.Recurrence{Type: tasks.Weekly, Interval: 1, Weekdays: []int{2, 2}}, 30.44 / 7},
		{"ZeroIntervalIsOne", tasks.Recurrence{Type: tasks.Weekly, Interval: 0}, 4.33},
		{"Biweekly", tasks.Recurrence{Type: tasks.Biweekly, Interval: 1, Weekdays: []int{1}}, 30.44 / 7 / 2},
		{"BiweeklyNoWeekdays", tasks.Recurrence{Type: tasks.Biweekly, Interval: 1}, 4.33 / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := calc.Calculate(tasks.Task{ID: "t", EstimatedHours: 1, Recurrence: tt.rec}, jan)
			if math.Abs(res.Occurrences-tt.expected) > tolerance {
				t.Errorf("Expected %.4f occurrences, got %.4f", tt.expected, res.Occurrences)
			}
		})
	}
}

func TestCalculate_AnnualPlacement(t *testing.T) {
	calc := NewCalculator()
	task := tasks.Task{ID: "t1", EstimatedHours: 12, Recurrence: tasks.Recurrence{Type: tasks.Annual, Interval: 1, MonthOfYear: 6}}

	for _, p := range period.Synthesize(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 12) {
		res, _ := calc.Calculate(task, p)
		if p.Month() == time.June {
			if res.Occurrences != 1 || res.Hours != 12 {
				t.Errorf("Expected June to carry 1 occurrence / 12h, got %+v", res)
			}
			continue
		}
		if res.Hours != 0 {
			t.Errorf("Expected 0 hours in %s, got %f", p.Key, res.Hours)
		}
	}
}

func TestCalculate_AnnualFallbacks(t *testing.T) {
	calc := NewCalculator()
	mar := mustPeriod(t, "2025-03")

	tests := []struct {
		name     string
		rec      tasks.Recurrence
		expected float64
	}{
		{"DueDateMonth", tasks.Recurrence{Type: tasks.Annual, DueDate: date(2024, 3, 15)}, 1},
		{"MonthOfYearWinsOverDueDate", tasks.Recurrence{Type: tasks.Annual, MonthOfYear: 4, DueDate: date(2024, 3, 15)}, 0},
		{"NothingToPlace", tasks.Recurrence{Type: tasks.Annual}, 0},
		{"InvalidMonthFallsBackToDueDate", tasks.Recurrence{Type: tasks.Annual, MonthOfYear: 13, DueDate: date(2024, 3, 15)}, 1},
		{"EveryOtherYearOffYear", tasks.Recurrence{Type: tasks.Annual, Interval: 2, DueDate: date(2024, 3, 15)}, 0},
		{"EveryOtherYearOnYear", tasks.Recurrence{Type: tasks.Annual, Interval: 2, DueDate: date(2023, 3, 15)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := calc.Calculate(tasks.Task{ID: "t", EstimatedHours: 1, Recurrence: tt.rec}, mar)
			if res.Occurrences != tt.expected {
				t.Errorf("Expected %v occurrences, got %v", tt.expected, res.Occurrences)
			}
		})
	}
}

func TestCalculate_Monthly(t *testing.T) {
	calc := NewCalculator()
	feb := mustPeriod(t, "2025-02")
	apr := mustPeriod(t, "2025-04")

	tests := []struct {
		name     string
		rec      tasks.Recurrence
		p        period.Period
		expected float64
	}{
		{"Unspecified", tasks.Recurrence{Type: tasks.Monthly, Interval: 1}, feb, 1},
		{"DayInMonth", tasks.Recurrence{Type: tasks.Monthly, Interval: 1, DayOfMonth: 28}, feb, 1},
		{"DayPastMonthEnd", tasks.Recurrence{Type: tasks.Monthly, Interval: 1, DayOfMonth: 30}, feb, 0},
		{"QuarterlyOnBaseline", tasks.Recurrence{Type: tasks.Monthly, Interval: 3, DueDate: date(2025, 1, 31)}, apr, 1},
		{"QuarterlyOffBaseline", tasks.Recurrence{Type: tasks.Monthly, Interval: 3, DueDate: date(2025, 1, 31)}, feb, 0},
		{"QuarterlyBeforeBaseline", tasks.Recurrence{Type: tasks.Monthly, Interval: 3, DueDate: date(2025, 4, 30)}, mustPeriod(t, "2025-01"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := calc.Calculate(tasks.Task{ID: "t", EstimatedHours: 2, Recurrence: tt.rec}, tt.p)
			if res.Occurrences != tt.expected {
				t.Errorf("Expected %v occurrences, got %v", tt.expected, res.Occurrences)
			}
			if res.Hours != 2*tt.expected {
				t.Errorf("Expected %v hours, got %v", 2*tt.expected, res.Hours)
			}
		})
	}
}

func TestCalculate_OneTime(t *testing.T) {
	calc := NewCalculator()
	task := tasks.Task{ID: "t1", EstimatedHours: 8, OneTime: true, Recurrence: tasks.Recurrence{Type: tasks.Monthly, DueDate: date(2025, 3, 31)}}

	if res, _ := calc.Calculate(task, mustPeriod(t, "2025-03")); res.Hours != 8 {
		t.Errorf("Expected 8 hours in the due month, got %v", res.Hours)
	}
	if res, _ := calc.Calculate(task, mustPeriod(t, "2025-04")); res.Hours != 0 {
		t.Errorf("Expected 0 hours outside the due month, got %v", res.Hours)
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Occurrences([]int, int, period.Period) float64 {
	panic("boom")
}

func TestCalculate_FaultsDegradeToZero(t *testing.T) {
	calc := &Calculator{Weekdays: panickingStrategy{}}
	task := tasks.Task{ID: "t1", EstimatedHours: 3, Recurrence: tasks.Recurrence{Type: tasks.Weekly}}

	res, d := calc.Calculate(task, mustPeriod(t, "2025-01"))
	if res != (Result{}) {
		t.Errorf("Expected zero result on fault, got %+v", res)
	}
	if d == nil {
		t.Fatal("Expected a diagnostic on fault")
	}

	unknown := tasks.Task{ID: "t2", EstimatedHours: 3, Recurrence: tasks.Recurrence{Type: "daily"}}
	res, d = NewCalculator().Calculate(unknown, mustPeriod(t, "2025-01"))
	if res.Hours != 0 || d == nil {
		t.Errorf("Expected unknown recurrence to yield zero with a diagnostic, got %+v / %v", res, d)
	}
}

func TestCalendarWeekdayStrategy(t *testing.T) {
	// January 2025 has five Wednesdays and four Mondays.
	jan := mustPeriod(t, "2025-01")
	got := CalendarWeekdayStrategy{}.Occurrences([]int{1, 3}, 1, jan)
	if got != 9 {
		t.Errorf("Expected 9 calendar occurrences, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		task tasks.Task
		want string
	}{
		{tasks.Task{Recurrence: tasks.Recurrence{Type: tasks.Weekly, Weekdays: []int{5, 1, 3}}}, "Weekly (Mon, Wed, Fri)"},
		{tasks.Task{Recurrence: tasks.Recurrence{Type: tasks.Biweekly}}, "Every 2 weeks"},
		{tasks.Task{Recurrence: tasks.Recurrence{Type: tasks.Monthly, DayOfMonth: 15}}, "Monthly on day 15"},
		{tasks.Task{Recurrence: tasks.Recurrence{Type: tasks.Annual, MonthOfYear: 6}}, "Annually in June"},
		{tasks.Task{OneTime: true, Recurrence: tasks.Recurrence{DueDate: date(2025, 3, 31)}}, "One-time (2025-03-31)"},
	}
	for _, tt := range tests {
		if got := Summarize(tt.task); got != tt.want {
			t.Errorf("Summarize() = %q, want %q", got, tt.want)
		}
	}
}
