// Package cache holds a small bounded cache whose entries expire after a
// fixed TTL. Eviction is by insertion order, not recency of use.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultTTL     = 10 * time.Second
	DefaultMaxSize = 64
)

type entry[V any] struct {
	key      string
	storedAt time.Time
	value    V
}

// TimedResultCache maps keys to values for at most ttl and keeps at most
// maxSize entries. Safe for concurrent use.
type TimedResultCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	order   *list.List // oldest insert at the front
	items   map[string]*list.Element
	now     func() time.Time
}

// New creates a cache. Non-positive arguments fall back to the defaults.
func New[V any](ttl time.Duration, maxSize int) *TimedResultCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &TimedResultCache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// Get returns the value stored for key if it has not expired.
func (c *TimedResultCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	if el, ok := c.items[key]; ok {
		return el.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

// Set stores value under key. Re-setting a key counts as a fresh insert.
func (c *TimedResultCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
	c.items[key] = c.order.PushBack(&entry[V]{key: key, storedAt: c.now(), value: value})
	c.pruneLocked()
}

// Len returns the number of live entries.
func (c *TimedResultCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	return len(c.items)
}

// Prune drops expired entries and trims the cache to capacity.
func (c *TimedResultCache[V]) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
}

func (c *TimedResultCache[V]) pruneLocked() {
	now := c.now()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[V])
		if now.Sub(e.storedAt) >= c.ttl {
			c.order.Remove(el)
			delete(c.items, e.key)
		}
		el = next
	}
	for len(c.items) > c.maxSize {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}
