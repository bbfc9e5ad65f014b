package schema

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default cache tuning.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
)

// Cache holds the current catalog snapshot and keeps it fresh.
//
// Freshness model:
//   - cold (no snapshot yet): Acquire blocks on a fetch, deduplicated so
//     concurrent callers trigger exactly one.
//   - fresh: Acquire returns the current snapshot immediately.
//   - stale (past TTL): Acquire returns the stale snapshot immediately and
//     kicks off one background refresh.
//   - invalidated: Acquire re-fetches synchronously; a schema-mutating
//     statement was seen, so stale data must not be served.
//   - fetch failure with a previous snapshot: the old snapshot keeps being
//     served, marked degraded.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger

	cur        atomic.Pointer[cacheEntry]
	version    atomic.Uint64
	refreshing atomic.Bool
	handles    atomic.Int64
	sf         singleflight.Group
}

type cacheEntry struct {
	snap        *Snapshot
	err         error // last fetch failure while this snapshot was current
	invalidated bool
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the snapshot time-to-live.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds background refresh fetches.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a cache over the given fetcher.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:      fetcher,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle is a reference to one snapshot. The snapshot stays consistent for
// the handle's lifetime regardless of concurrent refreshes. Release when
// done.
type Handle struct {
	snap     *Snapshot
	err      error
	released atomic.Bool
	cache    *Cache
}

// Snapshot returns the referenced snapshot. Never nil.
func (h *Handle) Snapshot() *Snapshot {
	return h.snap
}

// Degraded reports whether the snapshot could not be refreshed; Err holds
// the cause.
func (h *Handle) Degraded() bool {
	return h.err != nil
}

// Err returns the failure that made the handle degraded, or nil.
func (h *Handle) Err() error {
	return h.err
}

// Release returns the handle. Safe to call more than once.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.cache.handles.Add(-1)
	}
}

// Acquire returns a handle on the current snapshot, fetching one first
// when the cache is cold or invalidated. A snapshot that merely aged past
// its TTL is returned immediately while a background refresh runs. On a
// fetch failure the returned handle carries the last known snapshot (or an
// empty one) marked degraded instead of an error, so analysis can still
// run without catalog data.
func (c *Cache) Acquire(ctx context.Context) (*Handle, error) {
	e := c.cur.Load()
	if e == nil || e.invalidated {
		fetched, err := c.fetchShared(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if e != nil {
				c.logger.Warn("schema re-fetch after invalidation failed, serving stale snapshot", "error", err)
				return c.newHandle(e.snap, err), nil
			}
			c.logger.Warn("schema fetch failed with no cached snapshot", "error", err)
			return c.newHandle(NewSnapshot(nil, nil), err), nil
		}
		e = fetched
	}

	if c.isStale(e) && c.refreshing.CompareAndSwap(false, true) {
		go c.refresh()
	}
	return c.newHandle(e.snap, e.err), nil
}

func (c *Cache) newHandle(snap *Snapshot, err error) *Handle {
	c.handles.Add(1)
	return &Handle{snap: snap, err: err, cache: c}
}

func (c *Cache) isStale(e *cacheEntry) bool {
	return e.invalidated || time.Since(e.snap.fetchedAt) > c.ttl
}

// fetchShared performs the cold-path fetch, collapsing concurrent callers
// into a single fetch.
func (c *Cache) fetchShared(ctx context.Context) (*cacheEntry, error) {
	v, err, _ := c.sf.Do("fetch", func() (any, error) {
		snap, err := c.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return c.store(snap), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheEntry), nil
}

// refresh re-fetches in the background. A failure keeps the current
// snapshot and marks it degraded. The result lands only if the entry is
// still the one observed when the fetch began; an Invalidate or a
// competing fetch that moved the entry in the meantime wins.
func (c *Cache) refresh() {
	defer c.refreshing.Store(false)

	observed := c.cur.Load()
	if observed == nil || observed.invalidated {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	snap, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("schema refresh failed, serving stale snapshot", "error", err)
		c.cur.CompareAndSwap(observed, &cacheEntry{snap: observed.snap, err: err})
		return
	}

	snap.version = c.version.Add(1)
	if !c.cur.CompareAndSwap(observed, &cacheEntry{snap: snap}) {
		c.logger.Debug("schema refresh discarded, entry moved during fetch")
		return
	}
	c.logger.Debug("schema snapshot refreshed",
		"version", snap.version, "tables", len(snap.tables))
}

func (c *Cache) store(snap *Snapshot) *cacheEntry {
	snap.version = c.version.Add(1)
	e := &cacheEntry{snap: snap}
	c.cur.Store(e)
	return e
}

// Invalidate discards the current snapshot's freshness so the next Acquire
// fetches synchronously. Called when a schema-mutating statement is seen.
func (c *Cache) Invalidate() {
	for {
		old := c.cur.Load()
		if old == nil || old.invalidated {
			return
		}
		if c.cur.CompareAndSwap(old, &cacheEntry{snap: old.snap, err: old.err, invalidated: true}) {
			return
		}
	}
}

// ActiveHandles returns the number of unreleased handles.
func (c *Cache) ActiveHandles() int64 {
	return c.handles.Load()
}

// Current returns the current snapshot without touching freshness, or nil
// when cold. Intended for introspection.
func (c *Cache) Current() *Snapshot {
	if e := c.cur.Load(); e != nil {
		return e.snap
	}
	return nil
}
