// Package cache provides an in-memory LRU cache with lazy TTL expiry and a byte budget.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Options configures a Cache. Zero limits mean unbounded.
type Options[K comparable, V any] struct {
	MaxEntries int
	MaxBytes   int64
	DefaultTTL time.Duration // used when Put gets ttl <= 0; 0 = no expiry
	// Size estimates the memory cost of an entry. Nil counts every entry as 1 byte.
	Size func(key K, value V) int64
	// OnEvict is called for entries dropped by capacity or budget pressure.
	OnEvict func(key K)
	// Now is the clock, for tests.
	Now func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries     int
	Bytes       int64
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

type entry[V any] struct {
	value     V
	size      int64
	expiresAt time.Time // zero = never
}

// Cache is a least-recently-used cache. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	opts Options[K, V]

	mu       sync.Mutex
	lru      *simplelru.LRU[K, entry[V]]
	bytes    int64
	evicting bool
	stats    Stats
}

// unboundedEntries is the simplelru capacity used when MaxEntries is 0.
const unboundedEntries = 1 << 30

// New creates a cache.
func New[K comparable, V any](opts Options[K, V]) *Cache[K, V] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	size := opts.MaxEntries
	if size <= 0 {
		size = unboundedEntries
	}
	c := &Cache[K, V]{opts: opts}
	// NewLRU only fails for a non-positive size.
	c.lru, _ = simplelru.NewLRU[K, entry[V]](size, c.onRemove)
	return c
}

// onRemove runs under c.mu for every entry leaving the LRU.
func (c *Cache[K, V]) onRemove(key K, e entry[V]) {
	c.bytes -= e.size
	if c.evicting {
		c.stats.Evictions++
		if c.opts.OnEvict != nil {
			c.opts.OnEvict(key)
		}
	}
}

// Get returns the value for key. Expired entries are removed and reported as misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.opts.Now().Before(e.expiresAt) {
		c.lru.Remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Put stores value for ttl (ttl <= 0 uses DefaultTTL). Reports false when the
// entry alone exceeds the byte budget and was not stored.
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) bool {
	size := int64(1)
	if c.opts.Size != nil {
		size = c.opts.Size(key, value)
	}
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// simplelru.Add does not fire the callback on replace, so drop the old entry first.
	c.lru.Remove(key)
	if c.opts.MaxBytes > 0 && size > c.opts.MaxBytes {
		return false
	}

	e := entry[V]{value: value, size: size}
	if ttl > 0 {
		e.expiresAt = c.opts.Now().Add(ttl)
	}

	c.evicting = true
	c.lru.Add(key, e)
	c.bytes += size
	for c.opts.MaxBytes > 0 && c.bytes > c.opts.MaxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	c.evicting = false
	return true
}

// Remove deletes key. Reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Invalidate removes every entry for which pred returns true and returns the count.
func (c *Cache[K, V]) Invalidate(pred func(key K, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if ok && pred(k, e.value) {
			c.lru.Remove(k)
			n++
		}
	}
	return n
}

// Purge removes all entries.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries, including expired ones not yet read.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.bytes
	return s
}
