package cache

import (
	"sync"
	"time"
)

type entry struct {
	value   any
	expires time.Time
}

// InMemoryCache is a simple, concurrent-safe in-memory key-value store whose
// entries expire after a fixed TTL.
type InMemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry
}

// NewInMemoryCache creates and returns a new InMemoryCache.
// A ttl of zero or less keeps entries until they are deleted.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
}

// Get retrieves a value from the cache.
// It returns the value and true if the key exists and has not expired, otherwise nil and false.
func (c *InMemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, found := c.items[key]
	if !found || c.expired(item) {
		return nil, false
	}
	return item.value, true
}

// Set adds or updates a value in the cache.
func (c *InMemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := entry{value: value}
	if c.ttl > 0 {
		item.expires = c.now().Add(c.ttl)
	}
	c.items[key] = item
}

// Delete removes a value from the cache.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge drops every expired entry and returns how many were removed.
func (c *InMemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, item := range c.items {
		if c.expired(item) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *InMemoryCache) expired(item entry) bool {
	return !item.expires.IsZero() && !c.now().Before(item.expires)
}
