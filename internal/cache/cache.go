// Package cache implements the in-memory memoizing cache used for all
// external provider calls: TTL expiry, LRU eviction, and request coalescing
// so concurrent identical misses share a single producer invocation.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options control entry lifetime and eviction pressure. A zero value falls
// back to the cache-wide default set at construction.
type Options struct {
	TTL     time.Duration
	MaxSize int
}

// Producer computes a value on a cache miss. It is invoked at most once per
// overlapping window of GetOrSet callers for the same key.
type Producer[V any] func(ctx context.Context) (V, error)

// entry is the internal representation of a cached value. Entries never
// escape this package.
type entry[V any] struct {
	key       string
	data      V
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a TTL + LRU memoizing store. All state is guarded by a single
// mutex; coalescing of concurrent misses is delegated to singleflight so the
// in-flight marker is installed atomically before the producer runs and
// cleared only after it settles.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element // elements hold *entry[V]
	order   *list.List               // front = most recently used
	ttl     time.Duration
	maxSize int
	hits    uint64
	misses  uint64
	evicted uint64
	group   singleflight.Group
	logger  *slog.Logger
	nowFunc func() time.Time // test hook
}

// New creates a Cache with the given default TTL and LRU capacity.
// A nil logger disables cache logging.
func New[V any](ttl time.Duration, maxSize int, logger *slog.Logger) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Get returns the live value for key and whether it was present. Expired
// entries are removed lazily and count as misses. A hit moves the entry to
// the front of the access order.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if c.nowFunc().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return ent.data, true
}

// Set stores value under key. The optional Options override the default TTL
// and eviction threshold for this insert. Setting an existing key refreshes
// its value and access position; inserting a new key at capacity evicts the
// least recently used entry first.
func (c *Cache[V]) Set(key string, value V, opts ...Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, opts...)
}

func (c *Cache[V]) setLocked(key string, value V, opts ...Options) {
	ttl := c.ttl
	maxSize := c.maxSize
	if len(opts) > 0 {
		if opts[0].TTL > 0 {
			ttl = opts[0].TTL
		}
		if opts[0].MaxSize > 0 {
			maxSize = opts[0].MaxSize
		}
	}

	now := c.nowFunc()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.data = value
		ent.createdAt = now
		ent.expiresAt = now.Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	// New key: make room first
	for len(c.entries) >= maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evictedKey := oldest.Value.(*entry[V]).key
		c.removeLocked(oldest)
		c.evicted++
		if c.logger != nil {
			c.logger.Debug("Evicted LRU cache entry",
				"evicted_key", evictedKey,
				"inserting_key", key)
		}
	}

	ent := &entry[V]{
		key:       key,
		data:      value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.entries[key] = c.order.PushFront(ent)
}

// Has reports whether a live entry exists for key without touching the
// access order. Expired entries are removed lazily.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.nowFunc().After(elem.Value.(*entry[V]).expiresAt) {
		c.removeLocked(elem)
		return false
	}
	return true
}

// Delete removes key if present and reports whether it was.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Clear removes every entry and resets the statistics counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.evicted = 0
}

// Len returns the number of entries currently held, including entries whose
// TTL has elapsed but have not been swept yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup eagerly sweeps all expired entries and returns how many were
// removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeLocked(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// GetOrSet returns the live value for key, or invokes producer to compute
// it. Concurrent callers missing on the same key are coalesced into one
// producer invocation; every waiter receives the same value or the same
// error. The result is cached only on success. A waiter abandoning its
// context does not cancel the producer for the others; the producer always
// runs to completion.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, producer Producer[V], opts ...Options) (V, error) {
	c.mu.Lock()
	if value, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent Set or an earlier flight
		// may have populated the entry between the miss and here.
		c.mu.Lock()
		if elem, ok := c.entries[key]; ok {
			ent := elem.Value.(*entry[V])
			if !c.nowFunc().After(ent.expiresAt) {
				c.order.MoveToFront(elem)
				c.mu.Unlock()
				return ent.data, nil
			}
		}
		c.mu.Unlock()

		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.setLocked(key, value, opts...)
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Refresh invokes producer unconditionally and replaces the entry on
// success, bypassing any live value. Concurrent refreshes for the same key
// still coalesce.
func (c *Cache[V]) Refresh(ctx context.Context, key string, producer Producer[V], opts ...Options) (V, error) {
	result, err, _ := c.group.Do(key+"\x00refresh", func() (any, error) {
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.setLocked(key, value, opts...)
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// removeLocked unlinks an element from both the map and the access order.
func (c *Cache[V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	delete(c.entries, ent.key)
	c.order.Remove(elem)
}
