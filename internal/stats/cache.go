package stats

import (
	"sync"
	"time"
)

// Cache memoizes aggregation results for a bounded freshness window.
// It is a performance optimization only: a miss race just recomputes
// the same answer from the same stored readings.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// NewCache creates a cache whose entries expire after ttl
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for key if it is still fresh
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key, evicting any expired entries it finds
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{value: value, expires: now.Add(c.ttl)}
}

// Epoch buckets a time into coarse windows for cache keying, so
// concurrent requests inside one window share a key.
func Epoch(t time.Time, window time.Duration) int64 {
	return t.Unix() / int64(window/time.Second)
}
