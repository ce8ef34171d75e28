package matrix

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"demand-matrix/internal/demand"
	"demand-matrix/internal/diag"
	"demand-matrix/internal/period"
	"demand-matrix/internal/recurrence"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// DefaultMaxSkills bounds the skill axis of a matrix.
const DefaultMaxSkills = 100

// BuildResult carries a matrix with the diagnostics collected while building it.
// Valid is false when the build failed and Matrix is the empty fallback.
type BuildResult struct {
	Matrix   Matrix            `json:"matrix"`
	Warnings []diag.Diagnostic `json:"warnings,omitempty"`
	Valid    bool              `json:"valid"`
}

// Transformer builds demand matrices from task snapshots.
type Transformer struct {
	calc       *recurrence.Calculator
	resolver   *resolve.Service
	maxPeriods int
	maxSkills  int
	now        func() time.Time
}

// NewTransformer wires a transformer. A nil resolver keys skills by their raw references.
func NewTransformer(calc *recurrence.Calculator, resolver *resolve.Service, maxPeriods, maxSkills int, now func() time.Time) *Transformer {
	if calc == nil {
		calc = recurrence.NewCalculator()
	}
	if maxPeriods <= 0 {
		maxPeriods = period.DefaultMaxPeriods
	}
	if maxSkills <= 0 {
		maxSkills = DefaultMaxSkills
	}
	if now == nil {
		now = time.Now
	}
	return &Transformer{calc: calc, resolver: resolver, maxPeriods: maxPeriods, maxSkills: maxSkills, now: now}
}

// Build runs the full pipeline. Unexpected faults yield an empty, valid-shaped matrix
// with Valid=false; only context cancellation is returned as an error.
func (tr *Transformer) Build(ctx context.Context, raw []tasks.Task, supplied []period.ForecastPeriod) (res BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("tasks", len(raw)).Int("periods", len(supplied)).Msg("Matrix build failed, returning empty matrix")
			res = BuildResult{
				Matrix:   Empty(),
				Warnings: append(res.Warnings, diag.Fail("transform", "", "matrix build failed: %v", r)),
				Valid:    false,
			}
			err = nil
		}
	}()

	b := &build{tr: tr}

	// 1. Structural validation
	valid, diags := tasks.Normalize(raw)
	b.warn(diags...)

	// 2. Month axis
	periods, diags := period.BuildAxis(supplied, tr.maxPeriods)
	b.warn(diags...)
	if len(periods) == 0 {
		start := tr.now()
		periods = period.Synthesize(start, period.SynthesizedMonths)
		log.Info().Str("from", periods[0].Key).Int("months", len(periods)).Msg("No usable forecast periods supplied, synthesizing")
		b.warn(diag.Note("periods", "", "no usable periods supplied; synthesized %d months from %s", len(periods), periods[0].Key))
	}

	if err := ctx.Err(); err != nil {
		return BuildResult{}, err
	}

	// 3. Skill axis
	if err := b.resolveSkills(ctx, valid, supplied); err != nil {
		return BuildResult{}, err
	}

	// Display names for clients and preferred staff
	if err := b.resolveParties(ctx, valid); err != nil {
		return BuildResult{}, err
	}

	// 4. Cells
	points, err := b.cells(ctx, valid, periods)
	if err != nil {
		return BuildResult{}, err
	}

	m := Matrix{
		Periods:    periods,
		Skills:     b.axis,
		DataPoints: points,
	}

	// 5. Totals are derived by Matrix.Totals
	totals := m.Totals()
	log.Debug().
		Int("tasks", len(valid)).
		Int("periods", len(periods)).
		Int("skills", len(b.axis)).
		Int("cells", len(points)).
		Float64("demand", totals.TotalDemand).
		Msg("Demand matrix built")

	return BuildResult{Matrix: m, Warnings: b.warnings, Valid: true}, nil
}

type build struct {
	tr       *Transformer
	warnings []diag.Diagnostic

	skillName map[tasks.Identifier]string
	axis      []string
	onAxis    map[string]string // folded -> axis name

	clientNames map[string]string
	staffNames  map[string]string
}

func (b *build) warn(ds ...diag.Diagnostic) {
	b.warnings = append(b.warnings, ds...)
}

func (b *build) resolveSkills(ctx context.Context, valid []tasks.Task, supplied []period.ForecastPeriod) error {
	var refs []tasks.Identifier
	seen := make(map[tasks.Identifier]bool)
	collect := func(id tasks.Identifier) {
		if id.IsZero() || seen[id] {
			return
		}
		seen[id] = true
		refs = append(refs, id)
	}

	for _, fp := range supplied {
		for _, d := range fp.Demand {
			collect(tasks.ParseIdentifier(d.Skill))
		}
	}
	for _, t := range valid {
		for _, s := range t.Skills {
			collect(s)
		}
	}

	names := make([]string, len(refs))
	if b.tr.resolver != nil {
		resolved, diags, err := b.tr.resolver.ResolveIdentifiers(ctx, resolve.Skill, refs)
		if err != nil {
			return err
		}
		b.warn(diags...)
		names = resolved
	} else {
		for i, r := range refs {
			names[i] = r.Value
		}
	}

	b.skillName = make(map[tasks.Identifier]string, len(refs))
	b.onAxis = make(map[string]string)
	for i, r := range refs {
		name := strings.TrimSpace(names[i])
		folded := tasks.FoldName(name)
		if folded == "" {
			continue
		}
		if existing, ok := b.onAxis[folded]; ok {
			b.skillName[r] = existing
			continue
		}
		b.onAxis[folded] = name
		b.skillName[r] = name
		b.axis = append(b.axis, name)
	}

	sort.SliceStable(b.axis, func(i, j int) bool {
		return tasks.FoldName(b.axis[i]) < tasks.FoldName(b.axis[j])
	})

	if len(b.axis) > b.tr.maxSkills {
		for _, dropped := range b.axis[b.tr.maxSkills:] {
			delete(b.onAxis, tasks.FoldName(dropped))
		}
		b.warn(diag.Warn("skills", "", "skill axis capped at %d of %d skills", b.tr.maxSkills, len(b.axis)))
		b.axis = b.axis[:b.tr.maxSkills]
	}
	return nil
}

func (b *build) resolveParties(ctx context.Context, valid []tasks.Task) error {
	b.clientNames = make(map[string]string)
	b.staffNames = make(map[string]string)

	var clientRefs, staffRefs []string
	for _, t := range valid {
		if t.ClientName == "" && t.ClientID != "" {
			if _, ok := b.clientNames[t.ClientID]; !ok {
				b.clientNames[t.ClientID] = ""
				clientRefs = append(clientRefs, t.ClientID)
			}
		}
		if t.PreferredStaffName == "" && t.PreferredStaffID != "" {
			if _, ok := b.staffNames[t.PreferredStaffID]; !ok {
				b.staffNames[t.PreferredStaffID] = ""
				staffRefs = append(staffRefs, t.PreferredStaffID)
			}
		}
	}

	fill := func(kind resolve.Kind, refs []string, into map[string]string) error {
		if len(refs) == 0 {
			return nil
		}
		if b.tr.resolver == nil {
			for _, r := range refs {
				into[r] = r
			}
			return nil
		}
		names, diags, err := b.tr.resolver.ResolveNames(ctx, kind, refs)
		if err != nil {
			return err
		}
		b.warn(diags...)
		for i, r := range refs {
			into[r] = names[i]
		}
		return nil
	}

	if err := fill(resolve.Client, clientRefs, b.clientNames); err != nil {
		return err
	}
	return fill(resolve.Staff, staffRefs, b.staffNames)
}

func (b *build) skillKey(id tasks.Identifier) string {
	if name, ok := b.skillName[id]; ok {
		return name
	}
	return id.Value
}

type cellKey struct {
	skill  string
	period string
}

func (b *build) cells(ctx context.Context, valid []tasks.Task, periods []period.Period) ([]DataPoint, error) {
	buckets := make(map[cellKey][]TaskEntry)

	for _, t := range valid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		skills := demand.SkillKeys(t, b.skillKey)
		pattern := recurrence.PatternName(t)
		summary := recurrence.Summarize(t)

		for _, p := range periods {
			res, d := b.tr.calc.Calculate(t, p)
			if d != nil {
				log.Warn().Str("task", t.ID).Str("period", p.Key).Str("reason", d.Reason).Msg("Skipping task for period")
				b.warn(*d)
				continue
			}
			if res.Occurrences <= 0 || res.Hours <= 0 {
				continue
			}

			for _, skill := range skills {
				axisName, ok := b.onAxis[tasks.FoldName(skill)]
				if !ok {
					continue
				}
				key := cellKey{skill: tasks.FoldName(axisName), period: p.Key}
				buckets[key] = append(buckets[key], TaskEntry{
					ClientID:           t.ClientID,
					ClientName:         b.clientName(t),
					TaskID:             t.ID,
					TaskName:           t.Name,
					Skill:              axisName,
					EstimatedHours:     t.EstimatedHours,
					MonthlyOccurrences: res.Occurrences,
					MonthlyHours:       res.Hours,
					RecurrencePattern:  pattern,
					RecurrenceSummary:  summary,
					OneTime:            t.OneTime,
					PreferredStaffID:   t.PreferredStaffID,
					PreferredStaffName: b.staffName(t),
					PreferredStaffRole: t.PreferredStaffRole,
				})
			}
		}
	}

	points := make([]DataPoint, 0, len(buckets))
	for _, skill := range b.axis {
		for _, p := range periods {
			entries, ok := buckets[cellKey{skill: tasks.FoldName(skill), period: p.Key}]
			if !ok {
				continue
			}
			dp := DataPoint{
				Skill:       skill,
				PeriodKey:   p.Key,
				PeriodLabel: p.Label,
				Tasks:       entries,
			}.Recount()
			if dp.DemandHours <= 0 {
				continue
			}
			points = append(points, dp)
		}
	}
	return points, nil
}

func (b *build) clientName(t tasks.Task) string {
	if t.ClientName != "" {
		return t.ClientName
	}
	if name := b.clientNames[t.ClientID]; name != "" {
		return name
	}
	return t.ClientID
}

func (b *build) staffName(t tasks.Task) string {
	if t.PreferredStaffID == "" {
		return ""
	}
	if t.PreferredStaffName != "" {
		return t.PreferredStaffName
	}
	if name := b.staffNames[t.PreferredStaffID]; name != "" {
		return name
	}
	return fmt.Sprintf("Staff %s", t.PreferredStaffID)
}
