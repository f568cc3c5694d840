package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries under two keys: the fresh key expires at the
// entry's TTL, the stale shadow key lives for staleTTL so the fallback path
// still has a payload long after freshness has lapsed.
type RedisCache struct {
	client   *redis.Client
	prefix   string
	staleTTL time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, staleTTL time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "ingest"
	}
	return &RedisCache{client: client, prefix: prefix, staleTTL: staleTTL}
}

func (c *RedisCache) freshKey(key string) string { return c.prefix + ":fresh:" + key }
func (c *RedisCache) staleKey(key string) string { return c.prefix + ":stale:" + key }

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	return c.get(ctx, c.freshKey(key))
}

func (c *RedisCache) GetStale(ctx context.Context, key string) (*Entry, bool, error) {
	return c.get(ctx, c.staleKey(key))
}

func (c *RedisCache) get(ctx context.Context, fullKey string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", fullKey, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry %s: %w", fullKey, err)
	}
	return &e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	e := Entry{
		Payload:   payload,
		FetchedAt: time.Now(),
		TTL:       ttl,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.freshKey(key), data, ttl)
	pipe.Set(ctx, c.staleKey(key), data, c.staleTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
