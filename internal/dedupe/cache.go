// ABOUTME: Bounded TTL seen-set for message ids.
// ABOUTME: Stops a message delivered by both the send response and the push channel from appearing twice.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores when a key was marked and its position in the order list.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited set of seen keys.
// Expired entries are dropped lazily from the front of the insertion-order
// list, so no background goroutine is needed.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // keys, oldest mark at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache. ttl <= 0 means entries never expire; maxSize <= 0
// means the cache is unbounded.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Check reports whether key has been marked and has not expired.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	_, ok := c.seen[key]
	return ok
}

// CheckAndMark atomically reports whether key was already seen and marks it
// if it was not. Returns true for a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key as seen, refreshing its timestamp if already present.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	c.markLocked(key)
}

// Reset forgets every key.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen = make(map[string]*cacheEntry)
	c.order.Init()
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	return len(c.seen)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	now := c.now()

	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if c.maxSize > 0 && len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{timestamp: now, element: elem}
}

// expireLocked drops expired entries from the front. The list is ordered by
// mark time, so it stops at the first live entry.
func (c *Cache) expireLocked() {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(c.seen[key].timestamp) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}
