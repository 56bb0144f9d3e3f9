package cache

import (
	"context"
	"fmt"
	"time"
)

// Default policy knobs. TTL is fixed for every entry; callers never pick a
// per-entry TTL through the typed wrappers.
const (
	DefaultTTL      = time.Hour
	DefaultCapacity = 200
)

// Key is a deterministic cache key: the logical operation plus a hash of the
// normalized input and canonical option serialization. Two calls with
// identical semantic inputs always collide to the same key.
type Key struct {
	Op   string
	Hash string
}

// String converts the structured key into the final string used in Redis/map.
func (k Key) String() string {
	// <OP>:<HASH_HEX>
	return fmt.Sprintf("%s:%s", k.Op, k.Hash)
}

// Store is the byte-level cache interface used by the typed wrappers.
// Implemented by the memory store (dev/default) and Redis store (prod).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
