// Package dedupcache provides the short-TTL "already pushed this cycle"
// marker used to cut duplicate in-flight HTTP calls when a phase's
// per-alarm I/O is parallelized. Backed by Redis when configured, falling
// back to an in-process LRU with manual expiry otherwise.
package dedupcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache marks alarm ids as already handled for a short TTL.
type Cache interface {
	// MarkIfAbsent returns true if the key was not previously marked
	// (and marks it now), false if another caller already claimed it.
	MarkIfAbsent(ctx context.Context, alarmID int64) (bool, error)
	Close() error
}

// NewRedisCache builds a Redis-backed Cache using SETNX semantics.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) MarkIfAbsent(ctx context.Context, alarmID int64) (bool, error) {
	key := fmt.Sprintf("zmc:dedupe:%d", alarmID)
	ok, err := c.client.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe mark: %w", err)
	}
	return ok, nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// NewLocalCache builds an in-process fallback Cache, used when no Redis
// address is configured.
func NewLocalCache(ttl time.Duration, size int) Cache {
	if size <= 0 {
		size = 4096
	}
	cache, _ := lru.New[int64, time.Time](size)
	return &localCache{cache: cache, ttl: ttl}
}

type localCache struct {
	mu    sync.Mutex
	cache *lru.Cache[int64, time.Time]
	ttl   time.Duration
}

func (c *localCache) MarkIfAbsent(ctx context.Context, alarmID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expiry, ok := c.cache.Get(alarmID); ok && now.Before(expiry) {
		return false, nil
	}
	c.cache.Add(alarmID, now.Add(c.ttl))
	return true, nil
}

func (c *localCache) Close() error { return nil }
