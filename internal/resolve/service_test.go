package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	auditID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	taxID   = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	ghostID = "9b2c1d3e-0000-4000-8000-000000000000"
)

type fakeLookup struct {
	mu        sync.Mutex
	names     map[string]string
	failNames bool
	failList  bool
	nameCalls atomic.Int32
	listCalls atomic.Int32
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{names: map[string]string{auditID: "Audit", taxID: "Tax Preparation"}}
}

func (f *fakeLookup) LookupName(_ context.Context, _ Kind, id string) (string, error) {
	f.nameCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNames {
		return "", errors.New("directory unavailable")
	}
	name, ok := f.names[id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (f *fakeLookup) LookupID(_ context.Context, _ Kind, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.names {
		if n == name {
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (f *fakeLookup) ListNames(ctx context.Context, _ Kind) (map[string]string, error) {
	f.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errors.New("directory unavailable")
	}
	out := make(map[string]string, len(f.names))
	for k, v := range f.names {
		out[k] = v
	}
	return out, nil
}

func (f *fakeLookup) set(fn func(f *fakeLookup)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(l Lookup, concurrency int) (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewService(l, Options{TTL: 5 * time.Minute, Concurrency: concurrency, Clock: clock.Now}), clock
}

func TestResolveNames_PassThroughAndCache(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 4)

	names, diags, err := svc.ResolveNames(context.Background(), Skill, []string{"Bookkeeping", auditID, "  Audit "})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"Bookkeeping", "Audit", "Audit"}, names)
	assert.Equal(t, int32(1), lookup.listCalls.Load())
	assert.Equal(t, int32(0), lookup.nameCalls.Load(), "rebuild should have primed the cache")
}

func TestResolveNames_MissTriggersSingleLookup(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 4)

	_, _, err := svc.ResolveNames(context.Background(), Skill, []string{"Audit"})
	require.NoError(t, err)

	lookup.set(func(f *fakeLookup) { f.names[ghostID] = "Payroll" })

	names, _, err := svc.ResolveNames(context.Background(), Skill, []string{ghostID, ghostID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Payroll", "Payroll"}, names)
	assert.Equal(t, int32(1), lookup.nameCalls.Load())

	_, _, err = svc.ResolveNames(context.Background(), Skill, []string{ghostID})
	require.NoError(t, err)
	assert.Equal(t, int32(1), lookup.nameCalls.Load(), "second resolve must be served from cache")
}

func TestResolveNames_PlaceholderIsStableWithinEpoch(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 1)

	first, diags, err := svc.ResolveNames(context.Background(), Skill, []string{ghostID})
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "Unknown Skill (9b2c1d3e-0000-4000-8000-000000000000)", first[0])

	// The directory learns the id, but the epoch keeps its answer.
	lookup.set(func(f *fakeLookup) { f.names[ghostID] = "Payroll" })
	second, _, err := svc.ResolveNames(context.Background(), Skill, []string{ghostID})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveNames_LookupFailureDoesNotFailBatch(t *testing.T) {
	lookup := newFakeLookup()
	lookup.failList = true
	lookup.failNames = true
	svc, _ := newTestService(lookup, 2)

	names, diags, err := svc.ResolveNames(context.Background(), Skill, []string{auditID, "Named"})
	require.NoError(t, err)
	assert.Equal(t, []string{Placeholder(Skill, auditID), "Named"}, names)
	assert.Len(t, diags, 1)
}

func TestRefresh_StaleEntriesSurviveFailedRebuild(t *testing.T) {
	lookup := newFakeLookup()
	svc, clock := newTestService(lookup, 1)

	names, _, err := svc.ResolveNames(context.Background(), Skill, []string{auditID})
	require.NoError(t, err)
	require.Equal(t, "Audit", names[0])
	builtAt := svc.BuiltAt(Skill)

	lookup.set(func(f *fakeLookup) {
		f.failList = true
		f.failNames = true
	})
	clock.Advance(6 * time.Minute)

	names, diags, err := svc.ResolveNames(context.Background(), Skill, []string{auditID})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "Audit", names[0])
	assert.Equal(t, builtAt, svc.BuiltAt(Skill))
	assert.Equal(t, int32(2), lookup.listCalls.Load())

	// Within the TTL after a failed attempt no further rebuild is tried.
	clock.Advance(time.Minute)
	_, _, _ = svc.ResolveNames(context.Background(), Skill, []string{auditID})
	assert.Equal(t, int32(2), lookup.listCalls.Load())
}

func TestRefresh_CancelledCallerDoesNotDelayRebuild(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.ResolveNames(ctx, Skill, []string{auditID})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), lookup.listCalls.Load())

	names, _, err := svc.ResolveNames(context.Background(), Skill, []string{auditID})
	require.NoError(t, err)
	assert.Equal(t, "Audit", names[0])
	assert.Equal(t, int32(2), lookup.listCalls.Load(), "live call must rebuild the cache")
	assert.False(t, svc.BuiltAt(Skill).IsZero())
}

func TestPlaceholder_DistinctForSharedPrefix(t *testing.T) {
	a := Placeholder(Skill, "deadbeef-0000-4000-8000-000000000001")
	b := Placeholder(Skill, "deadbeef-1111-4000-8000-000000000002")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "Unknown Staff (x)", Placeholder(Staff, "x"))
}

func TestRefresh_RebuildStartsNewEpoch(t *testing.T) {
	lookup := newFakeLookup()
	svc, clock := newTestService(lookup, 1)

	first, _, _ := svc.ResolveNames(context.Background(), Skill, []string{ghostID})
	assert.Equal(t, Placeholder(Skill, ghostID), first[0])

	lookup.set(func(f *fakeLookup) { f.names[ghostID] = "Payroll" })
	clock.Advance(5 * time.Minute)

	second, _, err := svc.ResolveNames(context.Background(), Skill, []string{ghostID})
	require.NoError(t, err)
	assert.Equal(t, "Payroll", second[0])
}

func TestResolveNames_SequentialMatchesConcurrent(t *testing.T) {
	refs := []string{auditID, "Advisory", taxID, ghostID, auditID}

	seq, _ := newTestService(newFakeLookup(), 1)
	par, _ := newTestService(newFakeLookup(), 8)

	a, _, err := seq.ResolveNames(context.Background(), Skill, refs)
	require.NoError(t, err)
	b, _, err := par.ResolveNames(context.Background(), Skill, refs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolveNames_CancelledContext(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 2)
	_, _, _ = svc.ResolveNames(context.Background(), Skill, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.ResolveNames(ctx, Skill, []string{ghostID})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveIDs(t *testing.T) {
	lookup := newFakeLookup()
	svc, _ := newTestService(lookup, 1)

	ids, diags, err := svc.ResolveIDs(context.Background(), Skill, []string{"audit", taxID, "Nobody", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{auditID, taxID, "Nobody"}, ids)
	assert.Len(t, diags, 1)
}

func TestConcurrentReadsDuringRebuild(t *testing.T) {
	lookup := newFakeLookup()
	svc, clock := newTestService(lookup, 4)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				clock.Advance(5 * time.Minute)
			}
			names, _, err := svc.ResolveNames(context.Background(), Skill, []string{auditID, taxID})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if names[0] != "Audit" || names[1] != "Tax Preparation" {
				t.Errorf("unexpected names %v", names)
			}
		}(i)
	}
	wg.Wait()
}
