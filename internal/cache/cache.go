// Package cache owns the OID → value store of the bridge: an immutable
// snapshot swapped atomically by a TTL-gated refresh, plus the background
// refresher that keeps upstream I/O out of the query path.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/munin-snmp-bridge/internal/munin"
	"github.com/munin-snmp-bridge/internal/oid"
	"github.com/munin-snmp-bridge/internal/telemetry"
)

// Fetcher is the upstream side of the cache; *munin.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, plugins []string) (map[string][]munin.Metric, map[string]error)
}

// Entry is one cached data point.
type Entry struct {
	OID   oid.OID
	Name  string
	Value string
}

// Snapshot is an immutable view of the cache. entries and sorted hold
// exactly the same set; sorted ascends in numeric OID order. Snapshots
// are never mutated after publication.
type Snapshot struct {
	entries     map[string]Entry
	sorted      []Entry
	refreshedAt time.Time
}

// Lookup returns the value at an exact OID.
func (s *Snapshot) Lookup(o oid.OID) (string, bool) {
	e, ok := s.entries[o.String()]
	if !ok {
		return "", false
	}
	return e.Value, true
}

// NextAfter returns the entry with the numerically smallest OID strictly
// greater than o, or false when o is at or past the end of the tree.
func (s *Snapshot) NextAfter(o oid.OID) (Entry, bool) {
	i := sort.Search(len(s.sorted), func(i int) bool {
		return oid.Compare(s.sorted[i].OID, o) > 0
	})
	if i == len(s.sorted) {
		return Entry{}, false
	}
	return s.sorted[i], true
}

// Entries returns the snapshot contents in OID order.
func (s *Snapshot) Entries() []Entry {
	return s.sorted
}

// Len reports the number of cached entries.
func (s *Snapshot) Len() int {
	return len(s.sorted)
}

// RefreshedAt reports when this snapshot was built; zero for the initial
// empty snapshot.
func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

// Options configures a Cache.
type Options struct {
	Fetcher Fetcher
	Base    oid.OID
	Plugins []string
	TTL     time.Duration
	Clock   clockwork.Clock    // nil means the real clock
	Logger  *zap.Logger        // nil means no logging
	Metrics *telemetry.Metrics // nil means no telemetry
}

// Cache holds the current snapshot behind an atomic pointer and refreshes
// it from the fetcher at most once per TTL window.
type Cache struct {
	fetcher Fetcher
	base    oid.OID
	plugins []string
	ttl     time.Duration
	clock   clockwork.Clock
	log     *zap.Logger
	metrics *telemetry.Metrics

	// mu serializes refreshes; readers never take it
	mu       sync.Mutex
	lastGood map[string][]munin.Metric

	snapshot atomic.Pointer[Snapshot]
	poke     chan struct{}
}

// New creates a cache with an empty initial snapshot. The first query or
// refresher tick populates it.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Cache{
		fetcher:  opts.Fetcher,
		base:     opts.Base.Clone(),
		plugins:  append([]string(nil), opts.Plugins...),
		ttl:      opts.TTL,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		lastGood: make(map[string][]munin.Metric, len(opts.Plugins)),
		poke:     make(chan struct{}, 1),
	}
	c.snapshot.Store(&Snapshot{entries: map[string]Entry{}})
	return c
}

// Current returns the published snapshot. It never blocks on upstream
// I/O.
func (c *Cache) Current() *Snapshot {
	return c.snapshot.Load()
}

// Stale reports whether the published snapshot has outlived the TTL.
func (c *Cache) Stale() bool {
	return c.clock.Since(c.Current().refreshedAt) >= c.ttl
}

// Age reports how old the published snapshot is; zero before the first
// successful refresh.
func (c *Cache) Age() time.Duration {
	snap := c.Current()
	if snap.refreshedAt.IsZero() {
		return 0
	}
	return c.clock.Since(snap.refreshedAt)
}

// Poke nudges the background refresher without blocking. Called from the
// query path when a handler observes a stale snapshot.
func (c *Cache) Poke() {
	select {
	case c.poke <- struct{}{}:
	default:
	}
}

// RefreshIfStale rebuilds the snapshot when the TTL has expired and is a
// no-op otherwise, so calling it twice inside one window performs exactly
// one upstream fetch cycle. Single-flight: concurrent callers serialize
// and the losers see the fresh snapshot. A cycle in which every plugin
// fails leaves the previous snapshot and its timestamp untouched, so the
// next call retries instead of serving silently frozen data for a full
// TTL.
func (c *Cache) RefreshIfStale(ctx context.Context) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snapshot.Load()
	start := c.clock.Now()
	if start.Sub(prev.refreshedAt) < c.ttl {
		c.metrics.ObserveRefresh(telemetry.OutcomeFresh, 0, prev.Len())
		return prev
	}

	results, errs := c.fetcher.Fetch(ctx, c.plugins)

	succeeded := 0
	for _, plugin := range c.plugins {
		if err, failed := errs[plugin]; failed {
			// retain the plugin's last-good metrics at their previous
			// values until a future fetch succeeds
			c.metrics.ObserveFetchFailure(plugin)
			c.log.Warn("plugin fetch failed, keeping last known values",
				zap.String("plugin", plugin),
				zap.Int("retained", len(c.lastGood[plugin])),
				zap.Error(err))
			continue
		}
		c.lastGood[plugin] = results[plugin]
		succeeded++
	}

	elapsed := c.clock.Since(start)
	if succeeded == 0 {
		c.metrics.ObserveRefresh(telemetry.OutcomeFailed, elapsed, prev.Len())
		c.log.Error("refresh cycle failed for every plugin, keeping previous snapshot",
			zap.Int("plugins", len(c.plugins)),
			zap.Duration("elapsed", elapsed))
		return prev
	}

	next := c.build(start)
	c.snapshot.Store(next)

	outcome := telemetry.OutcomeOK
	if succeeded < len(c.plugins) {
		outcome = telemetry.OutcomePartial
	}
	c.metrics.ObserveRefresh(outcome, elapsed, next.Len())
	c.log.Debug("snapshot refreshed",
		zap.Int("entries", next.Len()),
		zap.Int("plugins_ok", succeeded),
		zap.Int("plugins_failed", len(c.plugins)-succeeded),
		zap.Duration("elapsed", elapsed))
	return next
}

// build assembles a brand-new snapshot from the retained per-plugin
// results. The published snapshot is never touched in place.
func (c *Cache) build(refreshedAt time.Time) *Snapshot {
	entries := make(map[string]Entry)
	for _, plugin := range c.plugins {
		for _, m := range c.lastGood[plugin] {
			e := Entry{
				OID:   oid.Encode(c.base, m.Name),
				Name:  m.Name,
				Value: m.Value,
			}
			entries[e.OID.String()] = e
		}
	}

	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return oid.Compare(sorted[i].OID, sorted[j].OID) < 0
	})

	return &Snapshot{entries: entries, sorted: sorted, refreshedAt: refreshedAt}
}

// Run is the background refresher: it performs a warm-up refresh, then
// refreshes on TTL expiry or on a poke from the query path. All upstream
// I/O happens here; query handlers only load the atomic snapshot.
func (c *Cache) Run(ctx context.Context) {
	c.RefreshIfStale(ctx)

	interval := c.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("cache refresher stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.Chan():
			c.RefreshIfStale(ctx)
		case <-c.poke:
			c.RefreshIfStale(ctx)
		}
	}
}
