package snapshot

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"demand-matrix/internal/diag"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// CachedSource wraps a task source, saving every successful fetch and serving the
// last saved snapshot when the upstream call fails.
type CachedSource struct {
	Upstream tasks.Source
	Store    *Store
	Dir      string
	Prefix   string
	Clock    func() time.Time
}

// NewCachedSource caches upstream's snapshots in dir.
func NewCachedSource(upstream tasks.Source, dir string) *CachedSource {
	return &CachedSource{
		Upstream: upstream,
		Store:    NewStore(),
		Dir:      dir,
		Prefix:   "tasks",
		Clock:    time.Now,
	}
}

// ListTasks implements tasks.Source.
func (c *CachedSource) ListTasks(ctx context.Context, scope tasks.Scope) ([]tasks.Task, error) {
	ts, _, err := c.ListTasksWithDiagnostics(ctx, scope)
	return ts, err
}

// ListTasksWithDiagnostics implements tasks.ReportingSource. Serving the saved
// snapshot instead of a live fetch yields a warning naming its fetch time.
func (c *CachedSource) ListTasksWithDiagnostics(ctx context.Context, scope tasks.Scope) ([]tasks.Task, []diag.Diagnostic, error) {
	id := c.sourceID(scope)

	ts, err := c.Upstream.ListTasks(ctx, scope)
	if err == nil {
		c.Store.Replace(id, ts, c.Clock())
		if saveErr := c.Store.Save(c.Dir, id); saveErr != nil {
			log.Warn().Err(saveErr).Str("source", id).Msg("Failed to persist task snapshot")
		}
		return ts, nil, nil
	}

	// Cancellation is the caller's decision, not an upstream outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil, err
	}

	if c.Store.Count(id) == 0 {
		if loadErr := c.Store.Load(c.Dir, id); loadErr != nil {
			log.Warn().Err(loadErr).Str("source", id).Msg("Failed to load task snapshot")
		}
	}
	if c.Store.Count(id) == 0 {
		return nil, nil, fmt.Errorf("task source unavailable and no snapshot cached: %w", err)
	}

	fetchedAt := c.Store.FetchedAt(id)
	log.Warn().
		Err(err).
		Str("source", id).
		Time("fetchedAt", fetchedAt).
		Msg("Task source unavailable, serving cached snapshot")
	warning := diag.Warn("tasks", id, "task source unavailable (%v); serving snapshot fetched %s", err, fetchedAt.Format(time.RFC3339))
	return c.Store.Tasks(id), []diag.Diagnostic{warning}, nil
}

func (c *CachedSource) sourceID(scope tasks.Scope) string {
	if len(scope.ClientIDs) == 0 {
		return c.Prefix
	}
	ids := append([]string(nil), scope.ClientIDs...)
	sort.Strings(ids)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(ids, "\x00")))
	return fmt.Sprintf("%s-%x", c.Prefix, h.Sum64())
}
