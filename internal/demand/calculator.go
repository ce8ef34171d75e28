package demand

import (
	"sort"

	"demand-matrix/internal/diag"
	"demand-matrix/internal/period"
	"demand-matrix/internal/recurrence"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// SkillHours is the accumulated demand of one skill in one month.
type SkillHours struct {
	Skill string  `json:"skill"`
	Hours float64 `json:"hours"`
}

// SkillKeyFunc maps a classified skill reference to its accumulation key,
// normally the resolved display name. Nil keys by the raw reference.
type SkillKeyFunc func(tasks.Identifier) string

// Calculator accumulates monthly hours per skill.
type Calculator struct {
	Recurrence *recurrence.Calculator
}

// NewCalculator returns a calculator using the default recurrence rules.
func NewCalculator(rc *recurrence.Calculator) *Calculator {
	if rc == nil {
		rc = recurrence.NewCalculator()
	}
	return &Calculator{Recurrence: rc}
}

// DemandBySkill adds each task's full monthly hours to every skill it requires.
// Hours are not split between skills: a two-skill task counts twice in total.
// References that collapse to the same key on one task count once.
func (c *Calculator) DemandBySkill(ts []tasks.Task, p period.Period, key SkillKeyFunc) ([]SkillHours, []diag.Diagnostic) {
	var diags []diag.Diagnostic
	acc := newAccumulator()

	for _, t := range ts {
		res, d := c.Recurrence.Calculate(t, p)
		if d != nil {
			log.Warn().Str("task", t.ID).Str("period", p.Key).Str("reason", d.Reason).Msg("Skipping task in skill demand")
			diags = append(diags, *d)
			continue
		}
		if res.Hours <= 0 {
			continue
		}

		for _, skill := range SkillKeys(t, key) {
			acc.add(skill, res.Hours)
		}
	}

	return acc.sorted(), diags
}

// SkillKeys returns the distinct accumulation keys of a task, in task order.
func SkillKeys(t tasks.Task, key SkillKeyFunc) []string {
	skills := t.Skills
	if skills == nil {
		skills = tasks.ParseIdentifiers(t.RequiredSkills)
	}

	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		k := s.Value
		if key != nil {
			k = key(s)
		}
		folded := tasks.FoldName(k)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, k)
	}
	return out
}

type accumulator struct {
	index map[string]int
	items []SkillHours
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (a *accumulator) add(skill string, hours float64) {
	folded := tasks.FoldName(skill)
	if i, ok := a.index[folded]; ok {
		a.items[i].Hours += hours
		return
	}
	a.index[folded] = len(a.items)
	a.items = append(a.items, SkillHours{Skill: skill, Hours: hours})
}

func (a *accumulator) sorted() []SkillHours {
	out := make([]SkillHours, len(a.items))
	copy(out, a.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}

// Total sums the hours of a demand list.
func Total(hours []SkillHours) float64 {
	var total float64
	for _, h := range hours {
		total += h.Hours
	}
	return total
}
