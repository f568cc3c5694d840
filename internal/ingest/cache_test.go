package ingest

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryCacheFreshness(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clock.Now)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte("v1"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	e, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want fresh hit", ok, err)
	}
	if string(e.Payload) != "v1" {
		t.Errorf("payload = %q, want v1", e.Payload)
	}

	// Exactly at the TTL boundary the entry is still fresh.
	clock.Advance(time.Hour)
	if _, ok, _ := cache.Get(ctx, "k"); !ok {
		t.Error("entry at exact TTL should still be fresh")
	}

	// One tick past and the fresh path misses, but the stale path serves.
	clock.Advance(time.Nanosecond)
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Error("entry past TTL should miss the fresh path")
	}
	e, ok, err = cache.GetStale(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("GetStale() = %v, %v; want stale hit", ok, err)
	}
	if string(e.Payload) != "v1" {
		t.Errorf("stale payload = %q, want v1", e.Payload)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()

	if _, ok, _ := cache.Get(ctx, "absent"); ok {
		t.Error("Get() on absent key should miss")
	}
	if _, ok, _ := cache.GetStale(ctx, "absent"); ok {
		t.Error("GetStale() on absent key should miss")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewMemoryCache(clock.Now)
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("old"), time.Minute)
	clock.Advance(2 * time.Minute)
	cache.Set(ctx, "k", []byte("new"), time.Minute)

	e, ok, _ := cache.Get(ctx, "k")
	if !ok || string(e.Payload) != "new" {
		t.Fatalf("Get() after overwrite = %v, %q; want fresh new", ok, e.Payload)
	}
}
