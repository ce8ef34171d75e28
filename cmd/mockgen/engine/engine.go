package engine

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"demand-matrix/internal/period"
	"demand-matrix/internal/store"
	"demand-matrix/internal/tasks"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type GeneratorConfig struct {
	Scenario string // "steady", "seasonal" or "messy"
	Clients  int
	Tasks    int
	Months   int
	Seed     int64
	Now      time.Time
}

var skillNames = []string{"Audit", "Tax", "Bookkeeping", "Payroll", "Advisory", "Compliance"}

var staffNames = []string{"Alice Moreau", "Bob Iyer", "Chen Wei", "Dana Okafor"}

// Generate builds a seed with the requested number of clients and tasks.
// The same config always yields the same seed.
func Generate(cfg GeneratorConfig) *store.Seed {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Months <= 0 {
		cfg.Months = 12
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	ids := func() string {
		return uuid.Must(uuid.NewRandomFromReader(rng)).String()
	}

	seed := &store.Seed{}
	for _, name := range skillNames {
		seed.Skills = append(seed.Skills, store.Entry{ID: ids(), Name: name})
	}
	for i, name := range staffNames {
		role := "Senior"
		if i == 0 {
			role = "Manager"
		}
		seed.Staff = append(seed.Staff, store.Entry{ID: ids(), Name: name, Role: role})
	}
	for i := 0; i < cfg.Clients; i++ {
		seed.Clients = append(seed.Clients, store.Entry{ID: ids(), Name: fmt.Sprintf("Client %03d", i+1)})
	}

	for i := 0; i < cfg.Tasks && len(seed.Clients) > 0; i++ {
		client := seed.Clients[rng.Intn(len(seed.Clients))]
		t := tasks.Task{
			ID:             ids(),
			Name:           fmt.Sprintf("Task %04d", i+1),
			ClientID:       client.ID,
			RequiredSkills: pickSkills(rng, seed.Skills),
			EstimatedHours: float64(1+rng.Intn(16)) / 2,
			Recurrence:     recurrenceFor(rng, cfg),
		}
		if t.Recurrence.Type == "" {
			t.OneTime = true
			due := period.SnapToStart(cfg.Now).AddDate(0, rng.Intn(cfg.Months), 14)
			t.Recurrence = tasks.Recurrence{Type: tasks.Monthly, DueDate: &due}
		}
		if rng.Float64() < 0.6 {
			t.PreferredStaffID = seed.Staff[rng.Intn(len(seed.Staff))].ID
		}
		if cfg.Scenario == "messy" {
			mangle(rng, &t)
		}
		seed.Tasks = append(seed.Tasks, t)
	}

	for _, p := range period.Synthesize(cfg.Now, cfg.Months) {
		seed.Periods = append(seed.Periods, period.ForecastPeriod{Key: p.Key, Label: p.Label})
	}
	return seed
}

func pickSkills(rng *rand.Rand, skills []store.Entry) []string {
	first := rng.Intn(len(skills))
	out := []string{skills[first].ID}
	if rng.Float64() < 0.25 {
		second := (first + 1 + rng.Intn(len(skills)-1)) % len(skills)
		// Name references exercise resolution of both identifier forms.
		out = append(out, skills[second].Name)
	}
	return out
}

func recurrenceFor(rng *rand.Rand, cfg GeneratorConfig) tasks.Recurrence {
	roll := rng.Float64()
	if cfg.Scenario == "seasonal" {
		// Year-end heavy: most work is annual, clustered in Q1.
		if roll < 0.6 {
			return tasks.Recurrence{Type: tasks.Annual, MonthOfYear: 1 + rng.Intn(3)}
		}
	}

	switch {
	case roll < 0.25:
		return tasks.Recurrence{Type: tasks.Weekly, Weekdays: []int{1 + rng.Intn(5)}}
	case roll < 0.35:
		return tasks.Recurrence{Type: tasks.Biweekly, Weekdays: []int{1 + rng.Intn(5)}}
	case roll < 0.7:
		return tasks.Recurrence{Type: tasks.Monthly, DayOfMonth: 1 + rng.Intn(28), Interval: 1 + rng.Intn(2)}
	case roll < 0.8:
		return tasks.Recurrence{Type: tasks.Monthly, Interval: 3}
	case roll < 0.92:
		return tasks.Recurrence{Type: tasks.Annual, MonthOfYear: 1 + rng.Intn(12)}
	default:
		return tasks.Recurrence{}
	}
}

// mangle injects the faults seen in hand-maintained task lists.
func mangle(rng *rand.Rand, t *tasks.Task) {
	switch rng.Intn(10) {
	case 0:
		t.EstimatedHours = 0
	case 1:
		t.RequiredSkills = nil
	case 2:
		t.Recurrence.Weekdays = append(t.Recurrence.Weekdays, 9)
	case 3:
		t.Recurrence.Type = "fortnightly"
	}
}

// Save writes the seed as YAML to outDir/name.yaml and returns the path.
func Save(outDir, name string, seed *store.Seed) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(seed)
	if err != nil {
		return "", fmt.Errorf("failed to encode seed: %w", err)
	}

	path := filepath.Join(outDir, name+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
