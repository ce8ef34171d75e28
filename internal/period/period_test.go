package period

import (
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	p, err := ParseKey("2024-02")
	if err != nil {
		t.Fatalf("ParseKey() unexpected error: %v", err)
	}
	if p.Days() != 29 {
		t.Errorf("Expected leap February to have 29 days, got %d", p.Days())
	}
	if p.Label != "Feb 2024" {
		t.Errorf("Expected label 'Feb 2024', got %q", p.Label)
	}
	if !p.Contains(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)) {
		t.Error("Expected Feb 29 to be inside the period")
	}
	if p.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Expected Mar 1 to be outside the half-open period")
	}

	if _, err := ParseKey("2024-13"); err == nil {
		t.Error("Expected error for month 13")
	}
}

func TestBuildAxis(t *testing.T) {
	supplied := []ForecastPeriod{
		{Key: "2025-03"},
		{Key: "garbage"},
		{Key: "2025-01", Label: "January"},
		{Key: "2025-03"},
		{Key: "2025-02"},
	}

	axis, diags := BuildAxis(supplied, 24)
	keys := Keys(axis)
	want := []string{"2025-01", "2025-02", "2025-03"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, keys)
		}
	}
	if axis[0].Label != "January" {
		t.Errorf("Expected supplied label to be kept, got %q", axis[0].Label)
	}
	if len(diags) != 1 {
		t.Errorf("Expected 1 diagnostic for the unparsable key, got %d", len(diags))
	}
}

func TestBuildAxis_Cap(t *testing.T) {
	var supplied []ForecastPeriod
	for _, p := range Synthesize(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 30) {
		supplied = append(supplied, ForecastPeriod{Key: p.Key})
	}

	axis, diags := BuildAxis(supplied, 24)
	if len(axis) != 24 {
		t.Errorf("Expected axis capped at 24, got %d", len(axis))
	}
	if len(diags) != 1 {
		t.Errorf("Expected a cap diagnostic, got %d", len(diags))
	}
}

func TestSynthesize(t *testing.T) {
	periods := Synthesize(time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC), SynthesizedMonths)
	if len(periods) != 12 {
		t.Fatalf("Expected 12 periods, got %d", len(periods))
	}
	if periods[0].Key != "2024-11" || periods[2].Key != "2025-01" || periods[11].Key != "2025-10" {
		t.Errorf("Unexpected keys: %v", Keys(periods))
	}
	for i := 1; i < len(periods); i++ {
		if !periods[i].Start.Equal(periods[i-1].End) {
			t.Errorf("Period %d does not start where %d ends", i, i-1)
		}
	}
}

func TestOverlaps(t *testing.T) {
	p, _ := ParseKey("2025-03")
	tests := []struct {
		name     string
		from, to time.Time
		want     bool
	}{
		{"Open", time.Time{}, time.Time{}, true},
		{"Inside", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), true},
		{"EndsBefore", time.Time{}, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), false},
		{"StartsAfter", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Time{}, false},
		{"StartsOnStart", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Time{}, true},
	}
	for _, tt := range tests {
		if got := p.Overlaps(tt.from, tt.to); got != tt.want {
			t.Errorf("%s: Overlaps() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
