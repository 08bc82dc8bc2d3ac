// Package cache provides a generic in-memory cache with TTL-based eviction.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTLCache is a thread-safe in-memory cache whose entries expire after a
// per-entry time to live. Expired entries are dropped lazily on Get and
// swept periodically in the background.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewTTLCache creates a TTLCache with the given default TTL and starts a
// background sweeper with the given interval. A non-positive interval
// disables sweeping; expired entries are then only dropped on access.
func NewTTLCache[K comparable, V any](defaultTTL, sweepInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		data:       make(map[K]entry[V]),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Set stores value under key with the default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL.
// A non-positive TTL means the entry never expires.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
}

// Get retrieves the value for key. Expired entries are removed and
// reported as absent.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if e.expired(time.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; the entry may have been replaced.
		if cur, still := c.data[key]; still && cur.expired(time.Now()) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	return e.value, true
}

// Touch extends the entry's lifetime by the default TTL if it exists.
func (c *TTLCache[K, V]) Touch(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok || e.expired(time.Now()) {
		return false
	}
	if c.defaultTTL > 0 {
		e.expiresAt = time.Now().Add(c.defaultTTL)
		c.data[key] = e
	}
	return true
}

// Del removes the entry for key.
func (c *TTLCache[K, V]) Del(key K) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *TTLCache[K, V]) Len() int {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Keys returns the keys of all live entries.
func (c *TTLCache[K, V]) Keys() []K {
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.data))
	for k, e := range c.data {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Clear removes all entries.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.data = make(map[K]entry[V])
	c.mu.Unlock()
}

// Close stops the background sweeper. The cache remains usable.
func (c *TTLCache[K, V]) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *TTLCache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *TTLCache[K, V]) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
		}
	}
}
