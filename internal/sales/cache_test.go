package sales

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchJSONCallsLoaderOncePerVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return Summary{Period: "7d", CountSales: calls}, nil
	}
	key, err := cache.BuildKey(ctx, keySummary("7d", false))
	require.NoError(t, err)
	require.Equal(t, "sales:summary:7d:false:1", key)

	var out Summary
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, out.CountSales)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, keySummary("7d", false))
	require.NoError(t, err)
	require.Equal(t, "sales:summary:7d:false:2", key)
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, out.CountSales)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, keySummary("all", true))
	require.NoError(t, err)
	var out Summary
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return Summary{Period: "all"}, nil
	}))
	require.True(t, mr.Exists(key))
	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists(key))
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)
	require.NoError(t, cache.Bump(ctx))

	var out Summary
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return Summary{CountSales: 3}, nil
	}))
	require.Equal(t, 3, out.CountSales)
	require.Error(t, cache.FetchJSON(ctx, key, &out, nil))
}

func TestListenForInvalidationFollowsPublishedVersion(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := cache.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.ListenForInvalidation(ctx))

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(bumpChannel)[bumpChannel] > 0
	}, time.Second, 10*time.Millisecond)
	mr.Publish(bumpChannel, "7")
	require.Eventually(t, func() bool {
		v, err := cache.Version(ctx)
		return err == nil && v == 7
	}, time.Second, 10*time.Millisecond)
}
