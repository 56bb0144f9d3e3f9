package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Typed gives one operation kind a statically typed view over a shared byte
// Store. Every operation keeps its own value type while the eviction and TTL
// policy lives once in the underlying store.
//
// The TTL is fixed at construction; callers cannot override it per entry.
type Typed[T any] struct {
	store Store
	ttl   time.Duration
}

// NewTyped wraps store with JSON (de)serialization for T.
// A ttl <= 0 falls back to the default of one hour.
func NewTyped[T any](store Store, ttl time.Duration) *Typed[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Typed[T]{store: store, ttl: ttl}
}

// Get returns the cached value for key, or ok=false on a miss.
func (c *Typed[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var zero T

	raw, ok, err := c.store.Get(ctx, key.String())
	if err != nil || !ok {
		return zero, false, err
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		// A corrupt entry is treated as a miss rather than a failure.
		return zero, false, fmt.Errorf("cache: decode entry %q: %w", key.String(), err)
	}
	return value, true, nil
}

// Set stores value under key with the wrapper's fixed TTL.
func (c *Typed[T]) Set(ctx context.Context, key Key, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode entry %q: %w", key.String(), err)
	}
	return c.store.Set(ctx, key.String(), raw, c.ttl)
}
