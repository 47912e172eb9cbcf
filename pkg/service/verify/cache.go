package verify

import (
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a verification result stays valid
	DefaultCacheTTL = 15 * time.Minute
	// DefaultCacheSize bounds the number of cached results
	DefaultCacheSize = 500
)

type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// Cache is a TTL cache of verification results keyed by normalized email.
// Expired entries are dropped lazily on read and in bulk by Sweep; when the
// cache is full the entry closest to expiry is evicted.
type Cache struct {
	ttl     time.Duration
	maxSize int
	clock   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithCacheTTL overrides the default TTL
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithCacheSize overrides the capacity bound
func WithCacheSize(n int) CacheOption {
	return func(c *Cache) {
		c.maxSize = n
	}
}

// WithCacheClock injects a clock for tests
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		c.clock = clock
	}
}

// NewCache creates a result cache
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:     DefaultCacheTTL,
		maxSize: DefaultCacheSize,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached value for key if present and unexpired
func (c *Cache) Get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false, false
	}
	if !entry.expiresAt.After(c.clock()) {
		delete(c.entries, key)
		return false, false
	}
	return entry.value, true
}

// Has reports whether key is present and unexpired
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores a value with the cache's TTL, evicting the oldest entry when at
// capacity.
func (c *Cache) Set(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.clock().Add(c.ttl),
	}
}

// Delete removes a key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Sweep removes all expired entries and returns how many were dropped
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	var removed int
	for key, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including any not yet swept
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}
