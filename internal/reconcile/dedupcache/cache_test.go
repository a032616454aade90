package dedupcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl)
}

func TestRedisCache_MarkIfAbsent_FirstClaimWins(t *testing.T) {
	c := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	first, err := c.MarkIfAbsent(ctx, 42)
	require.NoError(t, err)
	require.True(t, first)

	second, err := c.MarkIfAbsent(ctx, 42)
	require.NoError(t, err)
	require.False(t, second, "a second claim within the TTL must lose")
}

func TestRedisCache_MarkIfAbsent_ExpiresAndReclaims(t *testing.T) {
	c := newTestRedisCache(t, 10*time.Millisecond)
	ctx := context.Background()

	ok, err := c.MarkIfAbsent(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = c.MarkIfAbsent(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok, "a claim past its TTL should be reclaimable")
}

func TestRedisCache_MarkIfAbsent_DistinctKeysDoNotCollide(t *testing.T) {
	c := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	a, err := c.MarkIfAbsent(ctx, 1)
	require.NoError(t, err)
	require.True(t, a)

	b, err := c.MarkIfAbsent(ctx, 2)
	require.NoError(t, err)
	require.True(t, b)
}

func TestLocalCache_MarkIfAbsent_FirstClaimWins(t *testing.T) {
	c := NewLocalCache(time.Minute, 16)
	ctx := context.Background()

	first, err := c.MarkIfAbsent(ctx, 42)
	require.NoError(t, err)
	require.True(t, first)

	second, err := c.MarkIfAbsent(ctx, 42)
	require.NoError(t, err)
	require.False(t, second)
}

func TestLocalCache_MarkIfAbsent_ExpiresAndReclaims(t *testing.T) {
	c := NewLocalCache(10*time.Millisecond, 16)
	ctx := context.Background()

	ok, err := c.MarkIfAbsent(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = c.MarkIfAbsent(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
}
