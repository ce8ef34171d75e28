package mcp

import (
	"context"
	"fmt"

	"demand-matrix/internal/demand"
	"demand-matrix/internal/diag"
	"demand-matrix/internal/matrix"
	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"
	"demand-matrix/internal/visuals"

	"github.com/rs/zerolog/log"
)

// DefaultWindowMonths is the window length used when only 'from' is given.
const DefaultWindowMonths = 12

type buildArgs struct {
	Periods   []string `json:"periods,omitempty"`
	From      string   `json:"from,omitempty"`
	Months    int      `json:"months,omitempty"`
	ClientIDs []string `json:"client_ids,omitempty"`
}

type filterArgs struct {
	MatrixID          string   `json:"matrix_id,omitempty"`
	From              string   `json:"from,omitempty"`
	To                string   `json:"to,omitempty"`
	Skills            []string `json:"skills,omitempty"`
	Clients           []string `json:"clients,omitempty"`
	Staff             []string `json:"staff,omitempty"`
	IncludeUnassigned bool     `json:"include_unassigned,omitempty"`
	UnassignedOnly    bool     `json:"unassigned_only,omitempty"`
}

type drillDownArgs struct {
	MatrixID string `json:"matrix_id,omitempty"`
	Skill    string `json:"skill"`
	Period   string `json:"period"`
}

type monthlyDemandArgs struct {
	Period    string   `json:"period"`
	ClientIDs []string `json:"client_ids,omitempty"`
}

type refreshArgs struct{}

// MatrixResponse is the payload of the build and filter tools.
type MatrixResponse struct {
	MatrixID string        `json:"matrixId"`
	ParentID string        `json:"parentId,omitempty"`
	Valid    bool          `json:"valid"`
	Matrix   matrix.Matrix `json:"matrix"`
	Charts   []string      `json:"charts,omitempty"`
}

// MonthlyDemandResponse is the payload of monthly_demand_by_skill.
type MonthlyDemandResponse struct {
	Period     period.Period       `json:"period"`
	Skills     []demand.SkillHours `json:"skills"`
	TotalHours float64             `json:"totalHours"`
}

func (s *Server) handleBuildMatrix(ctx context.Context, args buildArgs) (any, error) {
	periods, notes, err := s.selectPeriods(ctx, args)
	if err != nil {
		return nil, err
	}

	ts, sourceNotes, err := tasks.List(ctx, s.tasks, tasks.Scope{ClientIDs: args.ClientIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	notes = append(notes, sourceNotes...)

	res, err := s.engine.BuildMatrix(ctx, ts, periods)
	if err != nil {
		return nil, err
	}

	id := s.remember(res.Matrix, "")
	log.Info().Str("matrix", id).Int("tasks", len(ts)).Int("cells", len(res.Matrix.DataPoints)).Msg("Matrix built")

	resp := MatrixResponse{MatrixID: id, Valid: res.Valid, Matrix: res.Matrix, Charts: s.charts(res.Matrix)}
	guidance := []string{
		"Use filter_demand_matrix with this matrix_id to narrow by months, skills, clients or preferred staff.",
		"Use drill_down_cell to see which tasks make up a (skill, month) cell.",
	}
	if !res.Valid {
		guidance = append(guidance, "The build failed and returned an empty matrix; check the diagnostics before retrying.")
	}
	return WrapResponse(resp, append(notes, res.Warnings...), guidance), nil
}

// selectPeriods picks the month axis: explicit keys, then a generated window,
// then the configured forecast periods. Nil lets the engine synthesize one.
func (s *Server) selectPeriods(ctx context.Context, args buildArgs) ([]period.ForecastPeriod, []diag.Diagnostic, error) {
	if len(args.Periods) > 0 {
		out := make([]period.ForecastPeriod, 0, len(args.Periods))
		for _, key := range args.Periods {
			out = append(out, period.ForecastPeriod{Key: key})
		}
		return out, nil, nil
	}

	if args.From != "" {
		start, err := period.ParseKey(args.From)
		if err != nil {
			return nil, nil, err
		}
		n := args.Months
		if n <= 0 {
			n = DefaultWindowMonths
		}
		var out []period.ForecastPeriod
		for _, p := range period.Synthesize(start.Start, n) {
			out = append(out, period.ForecastPeriod{Key: p.Key, Label: p.Label})
		}
		return out, nil, nil
	}

	if s.periods == nil {
		return nil, nil, nil
	}
	fps, err := s.periods.ListPeriods(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("Forecast periods unavailable, falling back to a generated window")
		return nil, []diag.Diagnostic{diag.Warn("periods", "forecast periods", "source unavailable: %v", err)}, nil
	}
	return fps, nil, nil
}

func (s *Server) handleFilterMatrix(ctx context.Context, args filterArgs) (any, error) {
	sm, err := s.lookup(args.MatrixID)
	if err != nil {
		return nil, err
	}

	req := matrix.FilterRequest{
		Skills:            args.Skills,
		Clients:           args.Clients,
		Staff:             args.Staff,
		IncludeUnassigned: args.IncludeUnassigned,
		ShowOnlyPreferred: args.UnassignedOnly,
	}
	if args.From != "" {
		p, err := period.ParseKey(args.From)
		if err != nil {
			return nil, err
		}
		req.From = p.Start
	}
	if args.To != "" {
		p, err := period.ParseKey(args.To)
		if err != nil {
			return nil, err
		}
		req.To = p.Start
	}

	res, err := s.engine.FilterMatrix(ctx, sm.Matrix, req)
	if err != nil {
		return nil, err
	}

	id := s.remember(res.Matrix, sm.ID)
	resp := MatrixResponse{MatrixID: id, ParentID: sm.ID, Valid: res.Valid, Matrix: res.Matrix, Charts: s.charts(res.Matrix)}

	var guidance []string
	if len(res.Matrix.DataPoints) == 0 {
		guidance = append(guidance, "No demand matches these filters; widen the month window or check the skill and client names.")
	}
	return WrapResponse(resp, res.Warnings, guidance), nil
}

func (s *Server) handleDrillDown(_ context.Context, args drillDownArgs) (any, error) {
	if args.Skill == "" || args.Period == "" {
		return nil, fmt.Errorf("skill and period are required")
	}
	sm, err := s.lookup(args.MatrixID)
	if err != nil {
		return nil, err
	}
	key := args.Period
	if p, err := period.ParseKey(key); err == nil {
		key = p.Key
	}

	d, err := s.engine.DrillDown(sm.Matrix, args.Skill, key)
	if err != nil {
		return nil, err
	}
	return WrapResponse(d, nil, nil), nil
}

func (s *Server) handleMonthlyDemand(ctx context.Context, args monthlyDemandArgs) (any, error) {
	p, err := period.ParseKey(args.Period)
	if err != nil {
		return nil, err
	}

	ts, sourceNotes, err := tasks.List(ctx, s.tasks, tasks.Scope{ClientIDs: args.ClientIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	hours, diags, err := s.engine.MonthlyDemandBySkill(ctx, ts, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	diags = append(sourceNotes, diags...)
	if hours == nil {
		hours = []demand.SkillHours{}
	}

	resp := MonthlyDemandResponse{Period: p, Skills: hours, TotalHours: demand.Total(hours)}
	return WrapResponse(resp, diags, nil), nil
}

func (s *Server) handleRefreshNames(_ context.Context, _ refreshArgs) (any, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("no name directory configured")
	}
	s.resolver.Invalidate()
	return WrapResponse(map[string]string{"status": "name caches cleared"}, nil,
		[]string{"Rebuild the matrix to pick up renamed skills, staff or clients."}), nil
}

func (s *Server) charts(m matrix.Matrix) []string {
	if !s.cfg.EnableMermaidCharts || len(m.DataPoints) == 0 {
		return nil
	}
	return []string{
		visuals.GenerateDemandChart(m, visuals.DefaultChartSkills),
		visuals.GenerateSkillShareChart(m, visuals.DefaultChartSkills),
	}
}
