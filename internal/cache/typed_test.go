package cache

import (
	"context"
	"testing"
	"time"
)

type answer struct {
	Text string `json:"text"`
}

func TestTypedRoundTrip(t *testing.T) {
	store := NewMemoryStore(10)
	typed := NewTyped[answer](store, time.Hour)
	ctx := context.Background()

	key, err := BuildKey("short", "2+2", nil)
	if err != nil {
		t.Fatalf("BuildKey: %v", err)
	}

	if _, ok, _ := typed.Get(ctx, key); ok {
		t.Fatalf("expected miss before Set")
	}

	if err := typed.Set(ctx, key, answer{Text: "4"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := typed.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got.Text != "4" {
		t.Fatalf("unexpected cached value: %#v ok=%v", got, ok)
	}
}

func TestTypedCorruptEntryIsMiss(t *testing.T) {
	store := NewMemoryStore(10)
	typed := NewTyped[answer](store, time.Hour)
	ctx := context.Background()

	key, _ := BuildKey("short", "corrupt", nil)
	if err := store.Set(ctx, key.String(), []byte("{not json"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, ok, err := typed.Get(ctx, key)
	if ok {
		t.Fatalf("corrupt entry must not produce a value")
	}
	if err == nil {
		t.Fatalf("expected decode error for corrupt entry")
	}
}
