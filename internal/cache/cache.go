// Package cache holds computed analytics responses for a short TTL so
// repeated requests within the window are served without recomputation.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// Stats tracks cache effectiveness.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Cache is a bounded in-memory store with per-entry TTL and lazy
// expiry. Entries are immutable once written; a payload is always the
// exact bytes that were stored. The clock is injectable so expiry can
// be tested without real delays.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	stats      Stats

	Now func() time.Time
}

// New returns a cache bounded to maxEntries. A non-positive bound means
// unbounded.
func New(maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		Now:        time.Now,
	}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the stored payload if present and not expired. Expired
// entries are removed and reported as absent.
func (c *Cache) Get(key string) ([]byte, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.miss()
		return nil, false
	}
	if e.expired(now) {
		c.mu.Lock()
		// Re-check under the write lock; a Put may have raced us.
		if cur, still := c.entries[key]; still && cur.expired(now) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
		c.mu.Unlock()
		c.miss()
		return nil, false
	}
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return e.payload, true
}

// Put stores a payload under the key. A zero or negative ttl stores
// nothing, since such an entry could never be served.
func (c *Cache) Put(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked(now)
		}
	}
	c.entries[key] = entry{payload: payload, createdAt: now, ttl: ttl}
}

// evictLocked drops expired entries, then the oldest entry if the cache
// is still full. Payloads are pure functions of current data, so
// discarding early is always correct.
func (c *Cache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			c.stats.Evictions++
		}
	}
	if c.maxEntries <= 0 || len(c.entries) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey = k
			oldest = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

// Key builds a cache key from the logical route, the caller's effective
// scope, and every query parameter that affects the result.
func Key(route, scopeKey string, params ...string) string {
	parts := append([]string{route, scopeKey}, params...)
	return strings.Join(parts, "|")
}
