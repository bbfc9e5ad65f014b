package schema_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

func usersTable() *schema.Table {
	return &schema.Table{
		Schema: "public",
		Name:   "users",
		Kind:   schema.KindTable,
		Columns: []schema.Column{
			{Name: "id", DataType: "bigint", Position: 1},
			{Name: "email", DataType: "text", Nullable: true, Position: 2},
		},
		PrimaryKey: []string{"id"},
	}
}

// countingFetcher counts fetches and can be made slow or failing.
type countingFetcher struct {
	mu      sync.Mutex
	fetches atomic.Int64
	delay   time.Duration
	err     error
	tables  []*schema.Table
}

func (f *countingFetcher) Fetch(ctx context.Context) (*schema.Snapshot, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return schema.NewSnapshot(f.tables, nil), nil
}

func (f *countingFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestCacheColdFetch(t *testing.T) {
	f := &countingFetcher{tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f)

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	assert.False(t, h.Degraded())
	tbl, ok := h.Snapshot().Table("", "users", "public")
	require.True(t, ok)
	assert.Equal(t, "public", tbl.Schema)
	assert.EqualValues(t, 1, f.fetches.Load())
	assert.EqualValues(t, 1, h.Snapshot().Version())
}

func TestCacheConcurrentColdMissSingleFetch(t *testing.T) {
	f := &countingFetcher{delay: 50 * time.Millisecond, tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.Acquire(context.Background())
			assert.NoError(t, err)
			h.Release()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.fetches.Load())
	assert.EqualValues(t, 0, c.ActiveHandles())
}

func TestCacheFreshSnapshotSkipsFetch(t *testing.T) {
	f := &countingFetcher{tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f, schema.WithTTL(time.Hour))

	for i := 0; i < 5; i++ {
		h, err := c.Acquire(context.Background())
		require.NoError(t, err)
		h.Release()
	}
	assert.EqualValues(t, 1, f.fetches.Load())
}

func TestCacheStaleServedWhileRefreshing(t *testing.T) {
	f := &countingFetcher{delay: 50 * time.Millisecond, tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f, schema.WithTTL(time.Nanosecond))

	h1, err := c.Acquire(context.Background())
	require.NoError(t, err)
	v1 := h1.Snapshot().Version()
	h1.Release()

	// Past the TTL: Acquire returns immediately with the old snapshot and
	// refreshes in the background.
	h2, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1, h2.Snapshot().Version())
	h2.Release()

	require.Eventually(t, func() bool {
		return c.Current().Version() > v1
	}, time.Second, time.Millisecond)
}

func TestCacheInvalidateForcesFetch(t *testing.T) {
	f := &countingFetcher{tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f, schema.WithTTL(time.Hour))

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	v1 := h.Snapshot().Version()
	h.Release()

	c.Invalidate()

	// Invalidation forces a synchronous re-fetch rather than serving the
	// stale snapshot.
	h2, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer h2.Release()

	assert.Greater(t, h2.Snapshot().Version(), v1)
	assert.EqualValues(t, 2, f.fetches.Load())
}

// gatedFetcher blocks its second fetch until the gate closes.
type gatedFetcher struct {
	fetches atomic.Int64
	gate    chan struct{}
}

func (f *gatedFetcher) Fetch(context.Context) (*schema.Snapshot, error) {
	if f.fetches.Add(1) == 2 {
		<-f.gate
	}
	return schema.NewSnapshot([]*schema.Table{usersTable()}, nil), nil
}

func TestCacheInvalidateDuringBackgroundRefresh(t *testing.T) {
	f := &gatedFetcher{gate: make(chan struct{})}
	c := schema.NewCache(f, schema.WithTTL(time.Nanosecond))
	ctx := context.Background()

	h1, err := c.Acquire(ctx)
	require.NoError(t, err)
	v1 := h1.Snapshot().Version()
	h1.Release()

	// Past the TTL a background refresh starts and parks in the fetcher.
	h2, err := c.Acquire(ctx)
	require.NoError(t, err)
	h2.Release()
	require.Eventually(t, func() bool {
		return f.fetches.Load() == 2
	}, time.Second, time.Millisecond)

	c.Invalidate()

	// Invalidation forces a synchronous fetch despite the refresh in flight.
	h3, err := c.Acquire(ctx)
	require.NoError(t, err)
	v3 := h3.Snapshot().Version()
	assert.Greater(t, v3, v1)
	assert.EqualValues(t, 3, f.fetches.Load())
	h3.Release()

	// When the parked refresh completes it must not replace the newer
	// snapshot with its pre-invalidation catalog state.
	close(f.gate)
	assert.Never(t, func() bool {
		return c.Current().Version() != v3
	}, 200*time.Millisecond, 5*time.Millisecond)
	assert.EqualValues(t, 3, f.fetches.Load())
}

func TestCacheColdFetchFailureDegrades(t *testing.T) {
	f := &countingFetcher{}
	f.setErr(errors.New("connection refused"))
	c := schema.NewCache(f)

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	assert.True(t, h.Degraded())
	assert.ErrorContains(t, h.Err(), "connection refused")
	assert.True(t, h.Snapshot().Empty())
}

func TestCacheRefreshFailureServesStale(t *testing.T) {
	f := &countingFetcher{tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f, schema.WithTTL(time.Hour))

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	h.Release()

	f.setErr(errors.New("connection reset"))
	c.Invalidate()

	h2, err := c.Acquire(context.Background())
	require.NoError(t, err)
	h2.Release()

	// The refresh fails; the old snapshot stays current and gets marked
	// degraded.
	require.Eventually(t, func() bool {
		h3, err := c.Acquire(context.Background())
		require.NoError(t, err)
		defer h3.Release()
		return h3.Degraded()
	}, time.Second, time.Millisecond)

	h4, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer h4.Release()
	_, ok := h4.Snapshot().Table("", "users", "public")
	assert.True(t, ok, "stale data should still be served")
}

func TestCacheColdFetchHonorsContext(t *testing.T) {
	f := &countingFetcher{delay: time.Minute}
	c := schema.NewCache(f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleDoubleReleaseIsSafe(t *testing.T) {
	f := &countingFetcher{tables: []*schema.Table{usersTable()}}
	c := schema.NewCache(f)

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	h.Release()
	h.Release()
	assert.EqualValues(t, 0, c.ActiveHandles())
}

func TestSnapshotLookups(t *testing.T) {
	orders := &schema.Table{
		Schema:  "sales",
		Name:    "orders",
		Kind:    schema.KindTable,
		Columns: []schema.Column{{Name: "id", Position: 1}, {Name: "user_id", Position: 2}},
	}
	snap := schema.NewSnapshot(
		[]*schema.Table{usersTable(), orders},
		[]*schema.Routine{{Schema: "public", Name: "total_for", Kind: schema.KindFunction, ReturnType: "numeric"}},
	)

	// Qualified lookup wins regardless of default schema.
	tbl, ok := snap.Table("sales", "orders", "public")
	require.True(t, ok)
	assert.Equal(t, "sales", tbl.Schema)

	// Unqualified falls back to the default schema first.
	tbl, ok = snap.Table("", "users", "public")
	require.True(t, ok)
	assert.Equal(t, "public", tbl.Schema)

	// Unique unqualified match resolves without a default schema.
	tbl, ok = snap.Table("", "orders", "")
	require.True(t, ok)
	assert.Equal(t, "orders", tbl.Name)

	// Case insensitive.
	_, ok = snap.Table("", "USERS", "public")
	assert.True(t, ok)

	_, ok = snap.Table("", "missing", "public")
	assert.False(t, ok)

	assert.Equal(t, []string{"public", "sales"}, snap.Schemas())
	require.Len(t, snap.Routines("TOTAL_FOR"), 1)

	col, ok := snap.Tables()[0].Column("EMAIL")
	require.True(t, ok)
	assert.True(t, col.Nullable)
}

func TestSnapshotColumnOrderPreserved(t *testing.T) {
	snap := schema.NewSnapshot([]*schema.Table{usersTable()}, nil)
	tbl, ok := snap.Table("public", "users", "")
	require.True(t, ok)

	var names []string
	for _, c := range tbl.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "email"}, names)
	assert.True(t, tbl.IsPrimaryKey("ID"))
	assert.False(t, tbl.IsPrimaryKey("email"))
}
