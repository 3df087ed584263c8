package adapters

import (
	"container/list"
	"context"
	"sync"
	"time"

	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// TTLCache is an in-memory cache with per-entry TTL and LRU eviction once
// capacity is reached. It backs the workflow search and feature toggle
// layers' time-bounded memoization.
type TTLCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

type ttlEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewTTLCache creates a cache bounded to the given capacity.
func NewTTLCache(capacity int) *TTLCache {
	return &TTLCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get retrieves a value, treating expired entries as absent.
func (c *TTLCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, exists := c.items[key]
	if !exists {
		return nil, false
	}

	entry := el.Value.(*ttlEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores a value with the given TTL, evicting the least recently used
// entry when over capacity.
func (c *TTLCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(time.Duration(ttlSeconds) * time.Second)

	if el, exists := c.items[key]; exists {
		entry := el.Value.(*ttlEntry)
		entry.value = value
		entry.expiresAt = expires
		c.order.MoveToFront(el)
		return nil
	}

	el := c.order.PushFront(&ttlEntry{key: key, value: value, expiresAt: expires})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*ttlEntry).key)
		}
	}

	return nil
}

// Delete removes a key from the cache.
func (c *TTLCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.items[key]; exists {
		c.order.Remove(el)
		delete(c.items, key)
	}
	return nil
}

// Ensure TTLCache implements the Cache interface.
var _ ports.Cache = (*TTLCache)(nil)
