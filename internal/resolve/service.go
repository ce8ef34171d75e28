package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"demand-matrix/internal/diag"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Kind selects the identifier space being resolved.
type Kind string

const (
	Skill  Kind = "skill"
	Staff  Kind = "staff"
	Client Kind = "client"
)

// Kinds lists every identifier space the service caches.
var Kinds = []Kind{Skill, Staff, Client}

// DefaultTTL is how long a cache epoch lasts before it is rebuilt.
const DefaultTTL = 5 * time.Minute

// ErrNotFound is returned by a Lookup when the identifier or name is unknown.
var ErrNotFound = errors.New("identifier not found")

// Lookup is the source of truth for identifier/display-name pairs.
type Lookup interface {
	// LookupName returns the display name for one opaque identifier.
	LookupName(ctx context.Context, kind Kind, id string) (string, error)
	// LookupID returns the identifier for one display name.
	LookupID(ctx context.Context, kind Kind, name string) (string, error)
	// ListNames returns every known identifier with its display name, for cache rebuilds.
	ListNames(ctx context.Context, kind Kind) (map[string]string, error)
}

// Options tunes a Service.
type Options struct {
	TTL time.Duration
	// Concurrency bounds parallel cache-miss lookups; 1 or less runs them sequentially.
	Concurrency int
	Clock       func() time.Time
}

// snapshot is an immutable cache epoch. Writers publish a new copy; readers never see partial writes.
type snapshot struct {
	byID      map[string]string
	byName    map[string]string // folded name -> id
	builtAt   time.Time
	checkedAt time.Time
}

func (s *snapshot) clone() *snapshot {
	c := &snapshot{
		byID:      make(map[string]string, len(s.byID)+1),
		byName:    make(map[string]string, len(s.byName)+1),
		builtAt:   s.builtAt,
		checkedAt: s.checkedAt,
	}
	for k, v := range s.byID {
		c.byID[k] = v
	}
	for k, v := range s.byName {
		c.byName[k] = v
	}
	return c
}

// Service is a bidirectional identifier/display-name cache backed by a Lookup.
// It is safe for concurrent use.
type Service struct {
	lookup Lookup
	ttl    time.Duration
	limit  int
	now    func() time.Time

	writeMu sync.Mutex
	caches  map[Kind]*atomic.Pointer[snapshot]
}

// NewService builds a resolution service. Construct one per process and share it.
func NewService(lookup Lookup, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Service{
		lookup: lookup,
		ttl:    opts.TTL,
		limit:  opts.Concurrency,
		now:    opts.Clock,
		caches: make(map[Kind]*atomic.Pointer[snapshot]),
	}
	for _, k := range Kinds {
		p := &atomic.Pointer[snapshot]{}
		p.Store(&snapshot{byID: map[string]string{}, byName: map[string]string{}})
		s.caches[k] = p
	}
	return s
}

func (s *Service) cache(kind Kind) *atomic.Pointer[snapshot] {
	if p, ok := s.caches[kind]; ok {
		return p
	}
	return s.caches[Skill]
}

// ResolveNames maps references to display names, in input order.
// Named references pass through unchanged; opaque ones are served from the cache,
// looked up on a miss, or replaced by a deterministic placeholder when the lookup fails.
// The only error returned is the context's.
func (s *Service) ResolveNames(ctx context.Context, kind Kind, refs []string) ([]string, []diag.Diagnostic, error) {
	return s.ResolveIdentifiers(ctx, kind, tasks.ParseIdentifiers(refs))
}

// ResolveIdentifiers is ResolveNames for references already classified at ingestion.
func (s *Service) ResolveIdentifiers(ctx context.Context, kind Kind, ids []tasks.Identifier) ([]string, []diag.Diagnostic, error) {
	s.refreshIfStale(ctx, kind)

	snap := s.cache(kind).Load()
	out := make([]string, len(ids))
	var misses []string
	missSet := make(map[string]bool)

	for i, id := range ids {
		if !id.IsOpaque() {
			out[i] = id.Value
			continue
		}
		if name, ok := snap.byID[id.Value]; ok {
			out[i] = name
			continue
		}
		if !missSet[id.Value] {
			missSet[id.Value] = true
			misses = append(misses, id.Value)
		}
	}

	if len(misses) == 0 {
		return out, nil, nil
	}

	found, diags, err := s.fetchNames(ctx, kind, misses)
	if err != nil {
		return nil, nil, err
	}

	for i, id := range ids {
		if id.IsOpaque() && out[i] == "" {
			out[i] = found[id.Value]
		}
	}
	return out, diags, nil
}

type lookupResult struct {
	name   string
	failed error
}

func (s *Service) fetchNames(ctx context.Context, kind Kind, ids []string) (map[string]string, []diag.Diagnostic, error) {
	results := make([]lookupResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if s.limit > 0 {
		g.SetLimit(s.limit)
	} else {
		g.SetLimit(1)
	}

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name, err := s.lookup.LookupName(gctx, kind, id)
			if err == nil && strings.TrimSpace(name) == "" {
				err = ErrNotFound
			}
			results[i] = lookupResult{name: strings.TrimSpace(name), failed: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	found := make(map[string]string, len(ids))
	var diags []diag.Diagnostic

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.cache(kind).Load().clone()
	for i, id := range ids {
		// A concurrent resolver may have settled this id first; keep its answer.
		if name, ok := next.byID[id]; ok {
			found[id] = name
			continue
		}
		r := results[i]
		if r.failed != nil {
			name := Placeholder(kind, id)
			log.Warn().Str("kind", string(kind)).Str("id", id).Err(r.failed).Msg("Identifier lookup failed, using placeholder")
			diags = append(diags, diag.Warn("resolve", id, "%s lookup failed (%v); using %q", kind, r.failed, name))
			next.byID[id] = name
			found[id] = name
			continue
		}
		next.byID[id] = r.name
		next.byName[tasks.FoldName(r.name)] = id
		found[id] = r.name
	}
	s.cache(kind).Store(next)

	return found, diags, nil
}

// ResolveIDs maps display names to identifiers, in input order.
// Opaque references pass through; unknown names come back unchanged with a diagnostic.
func (s *Service) ResolveIDs(ctx context.Context, kind Kind, names []string) ([]string, []diag.Diagnostic, error) {
	s.refreshIfStale(ctx, kind)

	snap := s.cache(kind).Load()
	out := make([]string, 0, len(names))
	var diags []diag.Diagnostic

	for _, raw := range names {
		ref := tasks.ParseIdentifier(raw)
		if ref.IsZero() {
			continue
		}
		if ref.IsOpaque() {
			out = append(out, ref.Value)
			continue
		}
		if id, ok := snap.byName[tasks.FoldName(ref.Value)]; ok {
			out = append(out, id)
			continue
		}

		id, err := s.lookup.LookupID(ctx, kind, ref.Value)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if err != nil || strings.TrimSpace(id) == "" {
			if err == nil {
				err = ErrNotFound
			}
			log.Warn().Str("kind", string(kind)).Str("name", ref.Value).Err(err).Msg("Name lookup failed, keeping name")
			diags = append(diags, diag.Warn("resolve", ref.Value, "%s id lookup failed (%v)", kind, err))
			out = append(out, ref.Value)
			continue
		}

		s.remember(kind, id, ref.Value)
		snap = s.cache(kind).Load()
		out = append(out, id)
	}

	return out, diags, nil
}

func (s *Service) remember(kind Kind, id, name string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.cache(kind).Load().clone()
	next.byID[id] = name
	next.byName[tasks.FoldName(name)] = id
	s.cache(kind).Store(next)
}

// refreshIfStale rebuilds the cache epoch from the lookup once the TTL has passed.
// A failed rebuild keeps the previous entries readable.
func (s *Service) refreshIfStale(ctx context.Context, kind Kind) {
	now := s.now()
	if now.Sub(s.cache(kind).Load().checkedAt) < s.ttl {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.cache(kind).Load()
	if now.Sub(current.checkedAt) < s.ttl {
		return
	}

	all, err := s.lookup.ListNames(ctx, kind)
	if err != nil {
		// A caller giving up is not a directory failure; the next call retries.
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("kind", string(kind)).Err(err).Msg("Identifier cache rebuild failed, serving stale entries")
		stale := current.clone()
		stale.checkedAt = now
		s.cache(kind).Store(stale)
		return
	}

	next := &snapshot{
		byID:      make(map[string]string, len(all)),
		byName:    make(map[string]string, len(all)),
		builtAt:   now,
		checkedAt: now,
	}
	for id, name := range all {
		id = tasks.ParseIdentifier(id).Value
		name = strings.TrimSpace(name)
		if id == "" || name == "" {
			continue
		}
		next.byID[id] = name
		next.byName[tasks.FoldName(name)] = id
	}
	s.cache(kind).Store(next)
	log.Debug().Str("kind", string(kind)).Int("entries", len(next.byID)).Msg("Identifier cache rebuilt")
}

// Invalidate forces the next call for every kind to rebuild its cache epoch.
func (s *Service) Invalidate() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, p := range s.caches {
		stale := p.Load().clone()
		stale.checkedAt = time.Time{}
		p.Store(stale)
	}
}

// BuiltAt reports when the cache for kind was last rebuilt successfully.
func (s *Service) BuiltAt(kind Kind) time.Time {
	return s.cache(kind).Load().builtAt
}

// Placeholder returns the deterministic stand-in name for an unresolvable identifier.
// It carries the full id so distinct unknown ids never share an axis entry.
func Placeholder(kind Kind, id string) string {
	label := string(kind)
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return fmt.Sprintf("Unknown %s (%s)", label, id)
}
