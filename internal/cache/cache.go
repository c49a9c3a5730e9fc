package cache

import (
	"log"
	"path"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called with a non-positive TTL and no
// default was configured.
const DefaultTTL = time.Hour

// entry is a stored value with its lifecycle instants. Expired entries are
// purged lazily on Get and in bulk by CleanupExpired.
type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// Stats is a read-only snapshot of the cache for the monitoring surface.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Cache is a process-wide key-value store with per-entry expiration and
// glob pattern invalidation. It is best-effort: losing its contents only
// costs redundant re-processing, never correctness.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	hits       uint64
	misses     uint64

	// now is swappable so tests can simulate the clock.
	now func() time.Time
}

// New creates an empty cache. defaultTTL is applied by Set when the caller
// passes a non-positive TTL; a non-positive defaultTTL falls back to
// DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Set inserts or replaces the value under key, expiring after ttl.
// A non-positive ttl uses the cache default. Set never fails.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// Get returns the live value under key. An entry at or past its expiration
// is a miss and is purged on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// Delete removes key if present; it is a no-op otherwise.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePattern removes every key matching the glob pattern (path.Match
// syntax, e.g. "video:*") and returns how many were removed. A malformed
// pattern is swallowed and logged; the cache is an optimization, not a
// correctness dependency.
func (c *Cache) DeletePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for key := range c.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			log.Printf("Cache: invalid pattern %q: %v", pattern, err)
			return 0
		}
		if ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// CleanupExpired proactively removes every expired entry and returns how
// many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of entry count and hit rate.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
