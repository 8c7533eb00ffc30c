package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alana-ai/alana/pkg/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memPersister struct {
	mu      sync.Mutex
	data    map[string]models.CacheEntry
	saves   int
	loadErr error
	saveErr error
}

func (p *memPersister) Load(context.Context) (map[string]models.CacheEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.loadErr
}

func (p *memPersister) Save(_ context.Context, entries map[string]models.CacheEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data = entries
	return nil
}

func (p *memPersister) snapshot() map[string]models.CacheEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

func answer(text string) models.Answer {
	return models.Answer{Text: text, Confidence: models.ConfidenceMedium, KeyPoints: []string{text}}
}

func TestPutGetRoundTrip(t *testing.T) {
	clock := newClock()
	c := New(Options{TTL: time.Hour, MaxSize: 10, Now: clock.Now}, nil, nil)

	stored := c.Put("k", answer("hola"))
	assert.Equal(t, clock.Now(), stored.CreatedAt)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hola", got.Text)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
	assert.Equal(t, []string{"hola"}, got.KeyPoints)

	_, ok = c.Get("other")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExpiry(t *testing.T) {
	clock := newClock()
	p := &memPersister{}
	ttl := time.Hour
	c := New(Options{TTL: ttl, MaxSize: 10, Now: clock.Now}, p, nil)

	c.Put("k", answer("x"))

	clock.Advance(ttl)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry is still valid exactly at TTL")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry expires after TTL")

	assert.Equal(t, int64(0), c.Stats().Entries)
	assert.Contains(t, p.snapshot(), "k", "purge on read does not write")

	require.NoError(t, c.Close())
	assert.Empty(t, p.snapshot(), "purge reaches the persister with the next write")
}

func TestOversizedSnapshotTrimmedOnLoad(t *testing.T) {
	clock := newClock()
	base := clock.Now()
	stored := make(map[string]models.CacheEntry)
	for i := 0; i < 10; i++ {
		stored[fmt.Sprintf("k%d", i)] = models.CacheEntry{
			Answer:    answer(fmt.Sprintf("a%d", i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	stored["expired"] = models.CacheEntry{Answer: answer("old"), CreatedAt: base.Add(-2 * time.Hour)}
	p := &memPersister{data: stored}

	c := New(Options{TTL: time.Hour, MaxSize: 3, Now: clock.Now}, p, nil)
	assert.Equal(t, int64(3), c.Stats().Entries)
	assert.Len(t, p.snapshot(), 3, "trimmed mapping is persisted")

	clock.Advance(time.Minute)
	c.Put("new", answer("n"))
	assert.Equal(t, int64(3), c.Stats().Entries)

	_, ok := c.Get("new")
	assert.True(t, ok)
	_, ok = c.Get("k9")
	assert.True(t, ok)
	_, ok = c.Get("k8")
	assert.True(t, ok)
	_, ok = c.Get("k7")
	assert.False(t, ok, "older entries evicted first")
}

func TestCapacityEvictsOldest(t *testing.T) {
	clock := newClock()
	c := New(Options{TTL: time.Hour, MaxSize: 2, Now: clock.Now}, nil, nil)

	c.Put("a", answer("a"))
	clock.Advance(time.Second)
	c.Put("b", answer("b"))
	clock.Advance(time.Second)
	c.Put("c", answer("c"))

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOverwriteAtCapacityDoesNotEvict(t *testing.T) {
	clock := newClock()
	c := New(Options{TTL: time.Hour, MaxSize: 2, Now: clock.Now}, nil, nil)

	c.Put("a", answer("a"))
	clock.Advance(time.Second)
	c.Put("b", answer("b"))
	clock.Advance(time.Second)
	c.Put("a", answer("a2"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a2", got.Text)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestPutSweepsExpiredBeforeEvicting(t *testing.T) {
	clock := newClock()
	c := New(Options{TTL: time.Minute, MaxSize: 2, Now: clock.Now}, nil, nil)

	c.Put("stale", answer("s"))
	clock.Advance(50 * time.Second)
	c.Put("fresh", answer("f"))
	clock.Advance(20 * time.Second)
	c.Put("new", answer("n"))

	_, ok := c.Get("fresh")
	assert.True(t, ok, "sweep frees room so nothing live is evicted")
	assert.Equal(t, int64(0), c.Stats().Evictions)
	assert.Equal(t, int64(2), c.Stats().Entries)
}

func TestPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_cache.json")
	clock := newClock()

	c := New(Options{TTL: time.Hour, MaxSize: 10, Now: clock.Now}, NewFilePersister(path), nil)
	c.Put("k", answer("persistida"))
	require.NoError(t, c.Close())

	reopened := New(Options{TTL: time.Hour, MaxSize: 10, Now: clock.Now}, NewFilePersister(path), nil)
	got, ok := reopened.Get("k")
	require.True(t, ok)
	assert.Equal(t, "persistida", got.Text)
	assert.True(t, got.CreatedAt.Equal(clock.Now()))
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c := New(Options{TTL: time.Hour, MaxSize: 10}, NewFilePersister(path), nil)
	assert.Equal(t, int64(0), c.Stats().Entries)

	c.Put("k", answer("x"))
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	p := &memPersister{saveErr: errors.New("disk full")}
	c := New(Options{TTL: time.Hour, MaxSize: 10}, p, nil)

	c.Put("k", answer("x"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "x", got.Text)
	assert.Equal(t, 1, p.saves)
}

func TestLoadErrorStartsEmpty(t *testing.T) {
	p := &memPersister{loadErr: errors.New("boom")}
	c := New(Options{TTL: time.Hour, MaxSize: 10}, p, nil)
	assert.Equal(t, int64(0), c.Stats().Entries)
}

func TestClear(t *testing.T) {
	clock := newClock()
	p := &memPersister{}
	c := New(Options{TTL: time.Minute, MaxSize: 10, Now: clock.Now}, p, nil)

	c.Put("old", answer("o"))
	clock.Advance(2 * time.Minute)
	c.Put("live", answer("l"))

	assert.Equal(t, 0, c.Clear(true), "put already swept the expired entry")
	assert.Equal(t, int64(1), c.Stats().Entries)

	assert.Equal(t, 1, c.Clear(false))
	assert.Empty(t, p.snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	p := &memPersister{}
	c := New(Options{TTL: time.Hour, MaxSize: 50}, p, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Put(key, answer(key))
			c.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), c.Stats().Entries)
	require.NoError(t, c.Close())
	assert.Len(t, p.snapshot(), 5, "final snapshot reflects the latest state")
}
