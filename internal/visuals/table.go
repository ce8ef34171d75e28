package visuals

import (
	"fmt"
	"strings"

	"demand-matrix/internal/matrix"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	skillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	cellStyle = lipgloss.NewStyle().
			Align(lipgloss.Right)

	emptyStyle = lipgloss.NewStyle().
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("241"))

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("10"))
)

const cellWidth = 10

// RenderTable renders the matrix as a skill x month table with row and column totals.
func RenderTable(m matrix.Matrix) string {
	if len(m.Skills) == 0 || len(m.Periods) == 0 {
		return headerStyle.Render("No demand in the selected window.")
	}

	skillWidth := len("Skill")
	for _, s := range m.Skills {
		if len(s) > skillWidth {
			skillWidth = len(s)
		}
	}
	skillWidth += 2

	var rows []string

	header := []string{headerStyle.Width(skillWidth).Render("Skill")}
	for _, p := range m.Periods {
		header = append(header, headerStyle.Width(cellWidth).Align(lipgloss.Right).Render(p.Label))
	}
	header = append(header, headerStyle.Width(cellWidth).Align(lipgloss.Right).Render("Total"))
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	columnTotals := make([]float64, len(m.Periods))
	for _, skill := range m.Skills {
		row := []string{skillStyle.Width(skillWidth).Render(skill)}
		var rowTotal float64
		for i, p := range m.Periods {
			dp, ok := m.Cell(skill, p.Key)
			if !ok {
				row = append(row, emptyStyle.Width(cellWidth).Render("-"))
				continue
			}
			rowTotal += dp.DemandHours
			columnTotals[i] += dp.DemandHours
			row = append(row, cellStyle.Width(cellWidth).Render(formatHours(dp.DemandHours)))
		}
		row = append(row, totalStyle.Width(cellWidth).Render(formatHours(rowTotal)))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	footer := []string{headerStyle.Width(skillWidth).Render("Total")}
	for _, v := range columnTotals {
		footer = append(footer, totalStyle.Width(cellWidth).Render(formatHours(v)))
	}
	totals := m.Totals()
	footer = append(footer, totalStyle.Width(cellWidth).Render(formatHours(totals.TotalDemand)))
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, footer...))

	summary := fmt.Sprintf("%d task entries across %d clients", totals.TotalTasks, totals.TotalClients)
	rows = append(rows, "", emptyStyle.UnsetAlign().Render(summary))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderDrillDown renders a drill-down as a short text report.
func RenderDrillDown(d *matrix.DrillDownResult) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s, %s: %s hours, %d tasks, %d clients",
		d.Skill, d.PeriodLabel, formatHours(d.DemandHours), d.TaskCount, d.ClientCount)))
	sb.WriteString("\n\n")

	sb.WriteString(headerStyle.Render("Clients"))
	sb.WriteString("\n")
	for _, c := range d.Clients {
		sb.WriteString(fmt.Sprintf("  %-30s %8s h  %d recurring, %d one-time\n", c.ClientName, formatHours(c.Hours), c.RecurringTasks, c.OneTimeTasks))
	}

	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("Tasks"))
	sb.WriteString("\n")
	for _, t := range d.Tasks {
		staff := "unassigned"
		if t.HasPreferredStaff() {
			staff = t.PreferredStaffName
		}
		sb.WriteString(fmt.Sprintf("  %-30s %8s h  %-28s %s\n", t.TaskName, formatHours(t.MonthlyHours), t.RecurrenceSummary, staff))
	}

	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("Recurrence"))
	sb.WriteString("\n")
	for _, p := range d.Patterns {
		sb.WriteString(fmt.Sprintf("  %-12s %3d tasks %8s h  %5.1f%%\n", p.Pattern, p.TaskCount, formatHours(p.Hours), p.Percentage))
	}

	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("Preferred staff"))
	sb.WriteString(fmt.Sprintf("\n  %.0f%% of tasks assigned (%s h assigned, %s h unassigned)\n",
		d.Staff.CoveragePercent, formatHours(d.Staff.AssignedHours), formatHours(d.Staff.UnassignedHours)))
	for _, s := range d.Staff.ByStaff {
		sb.WriteString(fmt.Sprintf("  %-30s %8s h  %d tasks\n", s.StaffName, formatHours(s.Hours), s.TaskCount))
	}
	return sb.String()
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.1f", h)
}
