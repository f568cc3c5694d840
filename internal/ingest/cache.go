package ingest

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached payload with its fetch time and TTL. A payload is fresh
// while now - FetchedAt <= TTL; after that it is only served through the
// explicit stale path.
type Entry struct {
	Payload   []byte        `json:"payload"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// Cache is the gateway's storage. Get returns fresh entries only; GetStale
// returns whatever payload was last cached regardless of age.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	GetStale(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// MemoryCache is an in-process Cache with an injected clock so staleness is
// deterministic under test. Entries are retained past their TTL for the
// stale-fallback path.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]*Entry),
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(e.FetchedAt) > e.TTL {
		return nil, false, nil
	}
	return e, true, nil
}

func (c *MemoryCache) GetStale(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Payload:   payload,
		FetchedAt: c.now(),
		TTL:       ttl,
	}
	return nil
}
