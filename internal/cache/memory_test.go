package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreTTL(t *testing.T) {
	c := NewMemoryStore(10)

	ctx := context.Background()
	key := "test:key"
	val := []byte("hello")

	if err := c.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryStoreSweepOnSet(t *testing.T) {
	c := NewMemoryStore(10)
	ctx := context.Background()

	if err := c.Set(ctx, "old", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// The next Set sweeps the expired entry even without a Get.
	if err := c.Set(ctx, "fresh", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	n, err := c.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected sweep to leave 1 entry, got %d", n)
	}
}

func TestMemoryStoreCapacityEvictsOldestInserted(t *testing.T) {
	const capacity = 200
	c := NewMemoryStore(capacity)
	ctx := context.Background()

	for i := 0; i < capacity; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := c.Set(ctx, key, []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	// Access k0 first: the policy is FIFO by insertion, so a recent read
	// must not save it.
	if _, hit, _ := c.Get(ctx, "k0"); !hit {
		t.Fatalf("expected k0 present before eviction")
	}

	if err := c.Set(ctx, "k200", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set k200 failed: %v", err)
	}

	n, err := c.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != capacity {
		t.Fatalf("expected size to stay at %d, got %d", capacity, n)
	}

	if _, hit, _ := c.Get(ctx, "k0"); hit {
		t.Fatalf("expected oldest-inserted k0 to be evicted")
	}
	if _, hit, _ := c.Get(ctx, "k1"); !hit {
		t.Fatalf("expected k1 to survive as the new oldest entry")
	}
	if _, hit, _ := c.Get(ctx, "k200"); !hit {
		t.Fatalf("expected freshly inserted k200 to be present")
	}
}

func TestMemoryStoreOverwriteRefreshesInsertionOrder(t *testing.T) {
	c := NewMemoryStore(2)
	ctx := context.Background()

	mustSet := func(key string) {
		t.Helper()
		if err := c.Set(ctx, key, []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	mustSet("a")
	mustSet("b")
	mustSet("a") // rewrite moves a to the back of the queue
	mustSet("c") // evicts b, now the oldest

	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Fatalf("expected b to be evicted after a was rewritten")
	}
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Fatalf("expected rewritten a to survive")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	c := NewMemoryStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := c.Len(ctx); n != 0 {
		t.Fatalf("expected empty cache after Clear, got %d entries", n)
	}
}
