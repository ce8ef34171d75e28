package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"demand-matrix/internal/demand"
	"demand-matrix/internal/diag"
	"demand-matrix/internal/matrix"
	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"
	"demand-matrix/internal/visuals"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	fromMonth   string
	toMonth     string
	monthCount  int
	clientScope []string
	jsonOutput  bool

	skillFilter       []string
	clientFilter      []string
	staffFilter       []string
	includeUnassigned bool
	unassignedOnly    bool
	withCharts        bool

	drillSkill  string
	drillPeriod string
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the skill x month demand matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		m, diags, err := buildFiltered(cmd.Context(), b)
		if err != nil {
			return err
		}
		printDiagnostics(cmd.ErrOrStderr(), diags)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, m)
		}
		fmt.Fprintln(out, visuals.RenderTable(m))
		if withCharts && len(m.DataPoints) > 0 {
			fmt.Fprintf(out, "\n```mermaid\n%s```\n", visuals.GenerateDemandChart(m, visuals.DefaultChartSkills))
			fmt.Fprintf(out, "\n```mermaid\n%s```\n", visuals.GenerateSkillShareChart(m, visuals.DefaultChartSkills))
		}
		return nil
	},
}

var drillDownCmd = &cobra.Command{
	Use:   "drilldown",
	Short: "Show the tasks behind one (skill, month) cell",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := period.ParseKey(drillPeriod)
		if err != nil {
			return err
		}

		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		m, diags, err := buildFiltered(cmd.Context(), b)
		if err != nil {
			return err
		}
		printDiagnostics(cmd.ErrOrStderr(), diags)

		d, err := b.engine.DrillDown(m, drillSkill, p.Key)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), d)
		}
		fmt.Fprintln(cmd.OutOrStdout(), visuals.RenderDrillDown(d))
		return nil
	},
}

var demandCmd = &cobra.Command{
	Use:   "demand",
	Short: "Print total required hours per skill for one month",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := period.ParseKey(fromMonth)
		if err != nil {
			return err
		}

		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		ts, sourceNotes, err := tasks.List(cmd.Context(), b.tasks, tasks.Scope{ClientIDs: clientScope})
		if err != nil {
			return fmt.Errorf("failed to load tasks: %w", err)
		}

		hours, diags, err := b.engine.MonthlyDemandBySkill(cmd.Context(), ts, p.Start, p.End)
		if err != nil {
			return err
		}
		printDiagnostics(cmd.ErrOrStderr(), append(sourceNotes, diags...))

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, hours)
		}
		fmt.Fprintf(out, "%s\n", p.Label)
		for _, sh := range hours {
			fmt.Fprintf(out, "  %-30s %8.1f h\n", sh.Skill, sh.Hours)
		}
		fmt.Fprintf(out, "  %-30s %8.1f h\n", "Total", demand.Total(hours))
		return nil
	},
}

// buildFiltered builds the matrix for the selected months and applies the filter flags.
func buildFiltered(ctx context.Context, b *backend) (matrix.Matrix, []diag.Diagnostic, error) {
	var periods []period.ForecastPeriod
	if fromMonth != "" {
		start, err := period.ParseKey(fromMonth)
		if err != nil {
			return matrix.Matrix{}, nil, err
		}
		for _, p := range period.Synthesize(start.Start, monthCount) {
			periods = append(periods, period.ForecastPeriod{Key: p.Key, Label: p.Label})
		}
	} else if fps, err := b.periods.ListPeriods(ctx); err == nil {
		periods = fps
	} else {
		log.Warn().Err(err).Msg("Forecast periods unavailable, using a generated window")
	}

	ts, sourceNotes, err := tasks.List(ctx, b.tasks, tasks.Scope{ClientIDs: clientScope})
	if err != nil {
		return matrix.Matrix{}, nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	built, err := b.engine.BuildMatrix(ctx, ts, periods)
	if err != nil {
		return matrix.Matrix{}, nil, err
	}

	req := matrix.FilterRequest{
		Skills:            skillFilter,
		Clients:           clientFilter,
		Staff:             staffFilter,
		IncludeUnassigned: includeUnassigned,
		ShowOnlyPreferred: unassignedOnly,
	}
	if toMonth != "" {
		to, err := period.ParseKey(toMonth)
		if err != nil {
			return matrix.Matrix{}, nil, err
		}
		req.To = to.Start
	}

	filtered, err := b.engine.FilterMatrix(ctx, built.Matrix, req)
	if err != nil {
		return matrix.Matrix{}, nil, err
	}
	diags := append(sourceNotes, built.Warnings...)
	return filtered.Matrix, append(diags, filtered.Warnings...), nil
}

func printDiagnostics(w io.Writer, diags []diag.Diagnostic) {
	for _, s := range diag.Strings(diags) {
		fmt.Fprintf(w, "! %s\n", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fromMonth, "from", "", "first month (YYYY-MM); defaults to the stored forecast periods")
	cmd.Flags().StringVar(&toMonth, "to", "", "last month kept (YYYY-MM)")
	cmd.Flags().IntVar(&monthCount, "months", 12, "number of months generated from --from")
	cmd.Flags().StringSliceVar(&clientScope, "client-id", nil, "only load tasks of these client ids")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")

	cmd.Flags().StringSliceVar(&skillFilter, "skill", nil, "keep only these skills (name or id)")
	cmd.Flags().StringSliceVar(&clientFilter, "client", nil, "keep only these clients (name or id)")
	cmd.Flags().StringSliceVar(&staffFilter, "staff", nil, "keep only tasks preferred for these staff (name or id)")
	cmd.Flags().BoolVar(&includeUnassigned, "include-unassigned", false, "with --staff, also keep tasks without preferred staff")
	cmd.Flags().BoolVar(&unassignedOnly, "unassigned-only", false, "keep only tasks without preferred staff")
}

func init() {
	addWindowFlags(matrixCmd)
	matrixCmd.Flags().BoolVar(&withCharts, "mermaid", false, "append Mermaid charts")

	addWindowFlags(drillDownCmd)
	drillDownCmd.Flags().StringVar(&drillSkill, "skill-name", "", "skill of the cell")
	drillDownCmd.Flags().StringVar(&drillPeriod, "period", "", "month of the cell (YYYY-MM)")
	_ = drillDownCmd.MarkFlagRequired("skill-name")
	_ = drillDownCmd.MarkFlagRequired("period")

	demandCmd.Flags().StringVar(&fromMonth, "period", "", "month (YYYY-MM)")
	demandCmd.Flags().StringSliceVar(&clientScope, "client-id", nil, "only load tasks of these client ids")
	demandCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	_ = demandCmd.MarkFlagRequired("period")

	rootCmd.AddCommand(matrixCmd, drillDownCmd, demandCmd)
}
