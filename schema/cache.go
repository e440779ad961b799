package schema

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes derived values by key. Concurrent callers computing the same
// key share one computation; distinct keys are read concurrently. Failed
// computations are not stored.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates an empty cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{items: make(map[string]V)}
}

// Get returns a cached value.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	return v, ok
}

// GetOrCompute returns the cached value for key, computing and storing it on a miss.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		// 可能在等待期间已被其他调用写入
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		c.misses.Add(1)
		v, err := compute()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.items[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit and miss counters.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Clear drops all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]V)
	c.mu.Unlock()
}
