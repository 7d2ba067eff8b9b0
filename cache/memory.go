package cache

import (
	"sync"
	"time"

	"github.com/ZaguanLabs/gotlive/clock"
)

// cacheEntry holds a cached value with its timestamp.
type cacheEntry struct {
	value     string
	timestamp time.Time
}

// InMemoryCache is a thread-safe in-memory cache with optional TTL.
// Without a TTL it only shrinks through Clear.
type InMemoryCache struct {
	cache map[string]cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
	clock clock.Clock
}

// NewInMemoryCache creates a new in-memory cache. A zero or negative ttl
// means entries never expire.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return NewInMemoryCacheWithClock(ttl, clock.Real())
}

// NewInMemoryCacheWithClock is NewInMemoryCache with an explicit time source.
func NewInMemoryCacheWithClock(ttl time.Duration, clk clock.Clock) *InMemoryCache {
	if ttl < 0 {
		ttl = 0
	}
	return &InMemoryCache{
		cache: make(map[string]cacheEntry),
		ttl:   ttl,
		clock: clk,
	}
}

// Get retrieves a value from the cache.
func (c *InMemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}

	if c.expired(entry, c.clock.Now()) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.cache[key]; ok && c.expired(cur, c.clock.Now()) {
			delete(c.cache, key)
		}
		c.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

// Set stores a value in the cache.
func (c *InMemoryCache) Set(key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = cacheEntry{
		value:     value,
		timestamp: c.clock.Now(),
	}
	return nil
}

// Len returns the number of entries in the cache (including expired ones).
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear removes all entries from the cache.
func (c *InMemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	return nil
}

// Entries returns all non-expired entries as key-value pairs.
func (c *InMemoryCache) Entries() (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]string, len(c.cache))
	now := c.clock.Now()

	for key, entry := range c.cache {
		if c.expired(entry, now) {
			continue
		}
		result[key] = entry.value
	}

	return result, nil
}

func (c *InMemoryCache) expired(e cacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.timestamp) > c.ttl
}

var (
	_ TranslationCache = (*InMemoryCache)(nil)
	_ Enumerable       = (*InMemoryCache)(nil)
)
