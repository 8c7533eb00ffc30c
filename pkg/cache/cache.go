// Package cache is a bounded, time-expiring response cache keyed by
// normalized question and corpus fingerprint. The in-memory map is
// authoritative; a Persister mirrors it after every mutation.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/metrics"
	"github.com/alana-ai/alana/pkg/models"
)

const persistTimeout = 10 * time.Second

// Persister stores and restores the full cache mapping.
type Persister interface {
	Load(ctx context.Context) (map[string]models.CacheEntry, error)
	Save(ctx context.Context, entries map[string]models.CacheEntry) error
}

// Options configures a Cache.
type Options struct {
	TTL     time.Duration
	MaxSize int
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl       time.Duration
	maxSize   int
	now       func() time.Time
	persister Persister
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[string]models.CacheEntry
	version uint64

	persistMu sync.Mutex
	saved     uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache and loads the persisted mapping once. A missing or
// corrupt snapshot starts the cache empty. persister may be nil.
func New(opts Options, persister Persister, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 500
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}

	c := &Cache{
		ttl:       opts.TTL,
		maxSize:   opts.MaxSize,
		now:       opts.Now,
		persister: persister,
		logger:    logger,
		entries:   make(map[string]models.CacheEntry),
	}

	if persister != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		loaded, err := persister.Load(ctx)
		cancel()
		if err != nil {
			logger.Warn("cache snapshot unreadable, starting empty", zap.Error(err))
		}
		for k, e := range loaded {
			c.entries[k] = e
		}
		if dropped := c.fitLocked(c.now()); dropped > 0 {
			logger.Info("cache snapshot trimmed on load", zap.Int("dropped", dropped), zap.Int("max_size", c.maxSize))
			c.persist(c.snapshotLocked())
		}
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return c
}

// fitLocked drops expired entries, then the oldest ones until the mapping
// fits maxSize. It returns how many entries were removed.
func (c *Cache) fitLocked(now time.Time) int {
	n := c.sweepLocked(now)
	for len(c.entries) > c.maxSize {
		c.evictOldestLocked()
		n++
	}
	return n
}

func (c *Cache) expired(e models.CacheEntry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > c.ttl
}

// Get returns the entry for key if present and not older than the TTL.
// An expired entry is removed from memory; the removal reaches the
// persister with the next write.
func (c *Cache) Get(key string) (models.CacheEntry, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.expired(e, c.now()) {
		delete(c.entries, key)
		metrics.CacheEntries.Set(float64(len(c.entries)))
		c.mu.Unlock()
		c.recordMiss()
		return models.CacheEntry{}, false
	}
	c.mu.Unlock()

	if !ok {
		c.recordMiss()
		return models.CacheEntry{}, false
	}
	c.hits.Add(1)
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return e, true
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// Put stores answer under key stamped with the current time. Expired
// entries are swept first; if the cache is still full and key is new,
// the oldest entries are evicted until there is room.
func (c *Cache) Put(key string, answer models.Answer) models.CacheEntry {
	c.mu.Lock()
	now := c.now()
	entry := models.CacheEntry{Answer: answer, CreatedAt: now}

	c.sweepLocked(now)
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = entry

	snap, ver := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap, ver)
	return entry
}

func (c *Cache) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.CreatedAt.Before(oldest) || (e.CreatedAt.Equal(oldest) && k < oldestKey) {
			oldestKey, oldest, first = k, e.CreatedAt, false
		}
	}
	if first {
		return
	}
	delete(c.entries, oldestKey)
	c.evictions.Add(1)
	metrics.CacheEvictionsTotal.Inc()
}

// snapshotLocked copies the mapping and bumps the version. Caller holds mu.
func (c *Cache) snapshotLocked() (map[string]models.CacheEntry, uint64) {
	c.version++
	snap := make(map[string]models.CacheEntry, len(c.entries))
	for k, e := range c.entries {
		snap[k] = e
	}
	metrics.CacheEntries.Set(float64(len(snap)))
	return snap, c.version
}

// persist writes snap unless a newer snapshot has already been written.
// Failures are logged; memory stays authoritative.
func (c *Cache) persist(snap map[string]models.CacheEntry, ver uint64) {
	if c.persister == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if ver <= c.saved {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.persister.Save(ctx, snap); err != nil {
		metrics.CachePersistErrorsTotal.Inc()
		c.logger.Warn("cache persist failed", zap.Uint64("version", ver), zap.Error(err))
		return
	}
	c.saved = ver
}

// Stats returns cache counters.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return models.CacheStats{
		Entries:   int64(n),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Clear removes entries and returns how many were dropped. If expiredOnly
// is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) int {
	c.mu.Lock()
	var n int
	if expiredOnly {
		n = c.sweepLocked(c.now())
	} else {
		n = len(c.entries)
		c.entries = make(map[string]models.CacheEntry)
	}
	snap, ver := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap, ver)
	return n
}

// Close flushes the current mapping and releases the persister.
func (c *Cache) Close() error {
	if c.persister == nil {
		return nil
	}
	c.mu.Lock()
	snap, ver := c.snapshotLocked()
	c.mu.Unlock()
	c.persist(snap, ver)

	if closer, ok := c.persister.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
