package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time
}

// MemoryStore is an in-process cache with lazy TTL expiry and a hard
// capacity bound. There is no background timer: expired entries are dropped
// on read and swept on every Set. When a Set pushes the entry count past the
// capacity, the oldest-inserted entry is evicted (FIFO by insertion, not LRU
// by access).
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]memoryEntry
	order    []string // keys in insertion order, oldest first
	capacity int
}

// NewMemoryStore creates a new in-memory cache.
// A capacity <= 0 falls back to the default of 200 entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		items:    make(map[string]memoryEntry),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Get retrieves a value from the cache. An entry whose age has reached its
// TTL is deleted and reported as a miss.
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if !now.Before(entry.expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && !now.Before(e.expiresAt) {
			c.remove(key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value, sweeps all expired entries, and then enforces the
// capacity bound. A ttl <= 0 deletes the key.
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()

	if ttl <= 0 {
		c.mu.Lock()
		c.remove(key)
		c.mu.Unlock()
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Overwrites count as fresh insertions for eviction ordering.
	if _, exists := c.items[key]; exists {
		c.remove(key)
	}

	c.items[key] = memoryEntry{
		value:      valueCopy,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	c.order = append(c.order, key)

	// Opportunistic sweep: every entry past its own TTL goes first.
	for _, k := range append([]string(nil), c.order...) {
		if e, ok := c.items[k]; ok && !now.Before(e.expiresAt) {
			c.remove(k)
		}
	}

	// Capacity bound: evict the single oldest-inserted survivor.
	if len(c.items) > c.capacity {
		c.remove(c.order[0])
	}

	return nil
}

// remove deletes key from both the map and the order list.
// Callers must hold the write lock.
func (c *MemoryStore) remove(key string) {
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of items currently in the cache.
func (c *MemoryStore) Len(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), nil
}

// Clear removes all items from cache. Useful for tests or manual resets.
func (c *MemoryStore) Clear(context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]memoryEntry)
	c.order = c.order[:0]
	c.mu.Unlock()
	return nil
}
