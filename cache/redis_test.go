package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-orgauth/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*cache.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisStoreWithClient(client, "test:"), mr
}

func TestRedisStorePutGetExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Put(ctx, "gate:password-recovery:u1", "1", 5*time.Minute))
	assert.True(t, mr.Exists("test:gate:password-recovery:u1"))

	value, ok, err := store.Get(ctx, "gate:password-recovery:u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	mr.FastForward(5 * time.Minute)

	exists, err := store.KeyExists(ctx, "gate:password-recovery:u1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, ok, err = store.Get(ctx, "gate:password-recovery:u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorePutIfAbsentAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	ok, err := store.PutIfAbsent(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.PutIfAbsent(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "k"))

	exists, err := store.KeyExists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStoreReportsConnectionErrors(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedisStoreWithClient(client, "")

	_, err := store.KeyExists(ctx, "k")
	assert.Error(t, err)

	_, err = store.PutIfAbsent(ctx, "k", "1", time.Minute)
	assert.Error(t, err)
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{})
	assert.Error(t, err)
}
