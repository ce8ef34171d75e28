package visuals

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"demand-matrix/internal/matrix"
)

// DefaultChartSkills caps how many skill series a chart draws.
const DefaultChartSkills = 6

// GenerateDemandChart creates a Mermaid xychart-beta with total demand per month as bars
// and the busiest skills as lines.
func GenerateDemandChart(m matrix.Matrix, maxSkills int) string {
	if len(m.Periods) == 0 || len(m.DataPoints) == 0 {
		return ""
	}
	if maxSkills <= 0 {
		maxSkills = DefaultChartSkills
	}

	index := make(map[string]int, len(m.Periods))
	var labels []string
	for i, p := range m.Periods {
		index[p.Key] = i
		labels = append(labels, fmt.Sprintf("%q", p.Label))
	}

	totals := make([]float64, len(m.Periods))
	series := make(map[string][]float64)
	for _, dp := range m.DataPoints {
		i, ok := index[dp.PeriodKey]
		if !ok {
			continue
		}
		totals[i] += dp.DemandHours
		if series[dp.Skill] == nil {
			series[dp.Skill] = make([]float64, len(m.Periods))
		}
		series[dp.Skill][i] += dp.DemandHours
	}

	maxY := 0.0
	for _, v := range totals {
		maxY = math.Max(maxY, v)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Monthly Demand by Skill\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Hours\" 0 --> %d\n", int(math.Ceil(maxY*1.1))+1))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", formatValues(totals)))
	for _, skill := range TopSkills(m, maxSkills) {
		sb.WriteString(fmt.Sprintf("    line [%s]\n", formatValues(series[skill])))
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateSkillShareChart creates a Mermaid pie chart of each skill's share of total demand.
func GenerateSkillShareChart(m matrix.Matrix, maxSkills int) string {
	if len(m.DataPoints) == 0 {
		return ""
	}
	if maxSkills <= 0 {
		maxSkills = DefaultChartSkills
	}

	totals := m.SkillTotals()
	top := TopSkills(m, maxSkills)

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie showData\n")
	sb.WriteString("    title \"Share of Demand by Skill\"\n")

	var rest float64
	shown := make(map[string]bool, len(top))
	for _, skill := range top {
		shown[skill] = true
		sb.WriteString(fmt.Sprintf("    %q : %.1f\n", skill, totals[skill]))
	}
	for skill, hours := range totals {
		if !shown[skill] {
			rest += hours
		}
	}
	if rest > 0 {
		sb.WriteString(fmt.Sprintf("    \"Other\" : %.1f\n", rest))
	}
	sb.WriteString("```")
	return sb.String()
}

// TopSkills returns up to n skills ordered by total demand, busiest first.
func TopSkills(m matrix.Matrix, n int) []string {
	totals := m.SkillTotals()
	skills := make([]string, 0, len(totals))
	for s := range totals {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool {
		if totals[skills[i]] != totals[skills[j]] {
			return totals[skills[i]] > totals[skills[j]]
		}
		return skills[i] < skills[j]
	})
	if n > 0 && len(skills) > n {
		skills = skills[:n]
	}
	return skills
}

func formatValues(values []float64) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%.1f", v)
	}
	return strings.Join(out, ", ")
}
