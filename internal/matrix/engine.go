package matrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demand-matrix/internal/demand"
	"demand-matrix/internal/diag"
	"demand-matrix/internal/period"
	"demand-matrix/internal/recurrence"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// ErrTimeout is returned when a computation exceeds its deadline. Partial results are discarded.
var ErrTimeout = errors.New("forecast computation timed out")

// DefaultTimeout bounds a single engine call.
const DefaultTimeout = 30 * time.Second

// Options configures an Engine.
type Options struct {
	MaxPeriods int
	MaxSkills  int
	Timeout    time.Duration
	Weekdays   recurrence.WeekdayStrategy
	Clock      func() time.Time
}

// Engine is the entry point used by report and presentation layers.
type Engine struct {
	calc        *recurrence.Calculator
	demand      *demand.Calculator
	resolver    *resolve.Service
	transformer *Transformer
	timeout     time.Duration
	now         func() time.Time
}

// NewEngine wires the pipeline around a shared resolution service.
func NewEngine(resolver *resolve.Service, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	calc := recurrence.NewCalculator()
	if opts.Weekdays != nil {
		calc.Weekdays = opts.Weekdays
	}
	return &Engine{
		calc:        calc,
		demand:      demand.NewCalculator(calc),
		resolver:    resolver,
		transformer: NewTransformer(calc, resolver, opts.MaxPeriods, opts.MaxSkills, opts.Clock),
		timeout:     opts.Timeout,
		now:         opts.Clock,
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func timeoutError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// BuildMatrix computes the demand matrix for a task snapshot over the supplied periods.
func (e *Engine) BuildMatrix(ctx context.Context, ts []tasks.Task, periods []period.ForecastPeriod) (BuildResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	res, err := e.transformer.Build(ctx, ts, periods)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("Matrix build aborted")
		return BuildResult{}, timeoutError("build matrix", err)
	}

	log.Info().
		Int("tasks", len(ts)).
		Int("cells", len(res.Matrix.DataPoints)).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", time.Since(started)).
		Msg("Matrix build complete")
	return res, nil
}

// FilterRequest carries raw filter inputs, before identifiers are resolved.
type FilterRequest struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
	// Skills may mix display names and skill identifiers.
	Skills []string `json:"skills,omitempty"`
	// Clients may mix client identifiers and names.
	Clients []string `json:"clients,omitempty"`
	// Staff may mix staff identifiers and names; non-empty selects the specific mode.
	Staff             []string `json:"staff,omitempty"`
	IncludeUnassigned bool     `json:"includeUnassigned,omitempty"`
	// ShowOnlyPreferred selects the none mode when no staff are named:
	// only entries without a preferred staff member are kept.
	ShowOnlyPreferred bool `json:"showOnlyPreferred,omitempty"`
}

// FilterMatrix resolves identifiers in req and applies the filter to m.
func (e *Engine) FilterMatrix(ctx context.Context, m Matrix, req FilterRequest) (FilterResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	spec := FilterSpec{From: req.From, To: req.To}
	var warnings []diag.Diagnostic

	if len(req.Skills) > 0 {
		names := req.Skills
		if e.resolver != nil {
			resolved, diags, err := e.resolver.ResolveNames(ctx, resolve.Skill, req.Skills)
			if err != nil {
				return FilterResult{}, timeoutError("filter matrix", err)
			}
			warnings = append(warnings, diags...)
			names = resolved
		}
		spec.Skills = names
	}

	clients, diags, err := e.expandRefs(ctx, resolve.Client, req.Clients)
	if err != nil {
		return FilterResult{}, timeoutError("filter matrix", err)
	}
	warnings = append(warnings, diags...)
	spec.ClientIDs = clients

	staff, diags, err := e.expandRefs(ctx, resolve.Staff, req.Staff)
	if err != nil {
		return FilterResult{}, timeoutError("filter matrix", err)
	}
	warnings = append(warnings, diags...)
	spec.Staff = NewStaffFilter(staff, req.IncludeUnassigned, req.ShowOnlyPreferred)

	res := Filter(m, spec)
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

// expandRefs returns refs together with their resolved counterparts (ids for names,
// names for ids) so the filter can match breakdown entries by either.
func (e *Engine) expandRefs(ctx context.Context, kind resolve.Kind, refs []string) ([]string, []diag.Diagnostic, error) {
	if len(refs) == 0 || e.resolver == nil {
		return refs, nil, nil
	}

	ids, diags, err := e.resolver.ResolveIDs(ctx, kind, refs)
	if err != nil {
		return nil, nil, err
	}
	names, more, err := e.resolver.ResolveNames(ctx, kind, refs)
	if err != nil {
		return nil, nil, err
	}

	out := make([]string, 0, len(refs)+len(ids)+len(names))
	out = append(out, refs...)
	out = append(out, ids...)
	out = append(out, names...)
	return out, append(diags, more...), nil
}

// DrillDown reshapes one cell of m.
func (e *Engine) DrillDown(m Matrix, skill, periodKey string) (*DrillDownResult, error) {
	return DrillDown(m, skill, periodKey)
}

// MonthlyDemandBySkill computes per-skill hours for a single window, keyed by resolved
// display names. It is the lightweight entry point for capacity-vs-demand comparisons.
func (e *Engine) MonthlyDemandBySkill(ctx context.Context, ts []tasks.Task, start, end time.Time) ([]demand.SkillHours, []diag.Diagnostic, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if !end.After(start) {
		return nil, nil, fmt.Errorf("monthly demand: period end %s is not after start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	valid, warnings := tasks.Normalize(ts)

	names := make(map[tasks.Identifier]string)
	if e.resolver != nil {
		var refs []tasks.Identifier
		for _, t := range valid {
			for _, s := range t.Skills {
				if _, ok := names[s]; !ok {
					names[s] = ""
					refs = append(refs, s)
				}
			}
		}
		resolved, diags, err := e.resolver.ResolveIdentifiers(ctx, resolve.Skill, refs)
		if err != nil {
			return nil, nil, timeoutError("monthly demand", err)
		}
		warnings = append(warnings, diags...)
		for i, r := range refs {
			names[r] = resolved[i]
		}
	}

	key := func(id tasks.Identifier) string {
		if n := names[id]; n != "" {
			return n
		}
		return id.Value
	}

	base := period.ForMonth(start)
	p := period.Period{Key: base.Key, Label: base.Label, Start: start.UTC(), End: end.UTC()}

	hours, diags := e.demand.DemandBySkill(valid, p, key)
	if err := ctx.Err(); err != nil {
		return nil, nil, timeoutError("monthly demand", err)
	}
	return hours, append(warnings, diags...), nil
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}
