package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCache_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenCache(ctx, path, Options{})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*Store)
	assert.True(t, ok)
}

func TestOpenCache_WithMemo(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenCache(ctx, path, Options{MemoEntries: 128})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*Memo)
	require.True(t, ok)
	_, ok = Unwrap(c).(*Store)
	assert.True(t, ok)
}

func TestOpenCache_BadRedisURL(t *testing.T) {
	_, err := OpenCache(context.Background(), "redis://:bad-port:x/", Options{})
	assert.Error(t, err)
}

func TestIsRedisURL(t *testing.T) {
	assert.True(t, IsRedisURL("redis://localhost:6379/0"))
	assert.True(t, IsRedisURL("rediss://cache.internal:6380"))
	assert.False(t, IsRedisURL("satcache.db"))
	assert.False(t, IsRedisURL("/var/cache/redis.db"))
}

func TestNewRedis_NilClient(t *testing.T) {
	_, err := NewRedis(RedisConfig{})
	assert.ErrorIs(t, err, ErrNilClient)
}

// Runs against a real server when SMTCACHE_TEST_REDIS is set, e.g.
// SMTCACHE_TEST_REDIS=redis://localhost:6379/15
func TestRedis_PutIfAbsent(t *testing.T) {
	url := os.Getenv("SMTCACHE_TEST_REDIS")
	if url == "" {
		t.Skip("SMTCACHE_TEST_REDIS not set")
	}
	ctx := context.Background()

	r, err := OpenRedis(ctx, url)
	require.NoError(t, err)
	defer r.Close()

	key := "test-" + t.Name()
	t.Cleanup(func() { r.rdb.Del(ctx, r.key(key)) })

	inserted, err := r.PutIfAbsent(ctx, key, "sat")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = r.PutIfAbsent(ctx, key, "unsat")
	require.NoError(t, err)
	assert.False(t, inserted)

	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sat", v)
}
