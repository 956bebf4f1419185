// Package ttlcache implements a generic, thread-safe read cache combining
// LRU eviction with a per-entry time-to-live.
//
// It fronts read-heavy listing queries as a latency optimization only: write
// paths never consult or update it, so the staleness window is bounded by the
// configured TTL.
package ttlcache

import (
	"sync"
	"time"
)

// node is a doubly linked list node holding a key-value pair and its expiry.
type node[K comparable, V any] struct {
	key     K
	val     V
	expires time.Time
	prev    *node[K, V]
	next    *node[K, V]
}

// Cache is a generic, thread-safe TTL+LRU cache.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*node[K, V]
	head     *node[K, V] // most recently used (sentinel)
	tail     *node[K, V] // least recently used (sentinel)
	now      func() time.Time
}

// Option configures the cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides the time source (for tests).
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates a cache with the given capacity and entry TTL.
// Panics if capacity < 1 or ttl <= 0.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	if capacity < 1 {
		panic("ttlcache: capacity must be >= 1")
	}
	if ttl <= 0 {
		panic("ttlcache: ttl must be positive")
	}

	head := &node[K, V]{}
	tail := &node[K, V]{}
	head.next = tail
	tail.prev = head

	c := &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*node[K, V], capacity),
		head:     head,
		tail:     tail,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get retrieves a value by key. Expired entries are dropped on access and
// reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(n.expires) {
		c.remove(n)
		delete(c.items, key)
		var zero V
		return zero, false
	}

	c.moveToFront(n)
	return n.val, true
}

// Put inserts or updates a key-value pair, resetting its TTL. If the cache is
// at capacity the least recently used entry is evicted.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)

	if n, ok := c.items[key]; ok {
		n.val = val
		n.expires = expires
		c.moveToFront(n)
		return
	}

	if len(c.items) >= c.capacity {
		victim := c.tail.prev
		c.remove(victim)
		delete(c.items, victim.key)
	}

	n := &node[K, V]{key: key, val: val, expires: expires}
	c.items[key] = n
	c.pushFront(n)
}

// Len returns the current number of entries, including not-yet-reaped
// expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.items = make(map[K]*node[K, V], c.capacity)
}

// --- internal linked list operations (caller must hold lock) ---

func (c *Cache[K, V]) remove(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	c.remove(n)
	c.pushFront(n)
}
