package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = fc.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	c := New(time.Hour)
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("video:abc", "metadata", 10*time.Second)

	got, ok := c.Get("video:abc")
	require.True(t, ok)
	assert.Equal(t, "metadata", got)
}

func TestCache_GetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok := c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_EntryExpires(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("video:abc", "metadata", 10*time.Second)

	clock.Advance(9 * time.Second)
	_, ok := c.Get("video:abc")
	require.True(t, ok, "entry should still be live before its TTL")

	clock.Advance(time.Second)
	_, ok = c.Get("video:abc")
	assert.False(t, ok, "entry should be a miss at its expiration instant")

	// The expired entry was lazily purged, not just hidden.
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCache_SetReplacesAndResetsTTL(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("k", "old", 10*time.Second)
	clock.Advance(8 * time.Second)
	c.Set("k", "new", 10*time.Second)
	clock.Advance(8 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_DefaultTTL(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("k", "v", 0)

	clock.Advance(time.Hour - time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("k", "v", time.Minute)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	c.Delete("k")
}

func TestCache_DeletePattern(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("video:1", "a", time.Minute)
	c.Set("video:2", "b", time.Minute)
	c.Set("subtitle:1", "c", time.Minute)
	c.Set("filehash:deadbeef", "d", time.Minute)

	removed := c.DeletePattern("video:*")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("video:1")
	assert.False(t, ok)
	_, ok = c.Get("video:2")
	assert.False(t, ok)

	_, ok = c.Get("subtitle:1")
	assert.True(t, ok, "other prefixes must survive the sweep")
	_, ok = c.Get("filehash:deadbeef")
	assert.True(t, ok)
}

func TestCache_DeletePatternInvalidPatternIsSwallowed(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("video:1", "a", time.Minute)

	removed := c.DeletePattern("video:[")
	assert.Equal(t, 0, removed)

	_, ok := c.Get("video:1")
	assert.True(t, ok)
}

func TestCache_CleanupExpired(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("short:1", "a", time.Second)
	c.Set("short:2", "b", time.Second)
	c.Set("long:1", "c", time.Hour)

	clock.Advance(2 * time.Second)

	removed := c.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Stats().Entries)

	_, ok := c.Get("long:1")
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("video:%d-%d", n, j)
				c.Set(key, j, time.Minute)
				c.Get(key)
				if j%3 == 0 {
					c.Delete(key)
				}
				if j%50 == 0 {
					c.DeletePattern(fmt.Sprintf("video:%d-*", n))
					c.CleanupExpired()
				}
			}
		}(i)
	}
	wg.Wait()

	// Reaching here without the race detector complaining is the point;
	// sanity-check the structure is still usable.
	c.Set("final", "v", time.Minute)
	_, ok := c.Get("final")
	assert.True(t, ok)
}
