package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() (*ResponseCache, *MemoryBackend, *time.Time) {
	backend := NewMemoryBackend()
	cache := New(backend)
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	return cache, backend, &clock
}

func TestPutThenGet(t *testing.T) {
	cache, _, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "show me idli batter", "Here are some options."))

	response, hit, err := cache.Get(ctx, "s1", "show me idli batter")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Here are some options.", response)
}

func TestQueryNormalization(t *testing.T) {
	cache, _, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "Show Me Idli Batter", "reply"))

	// Case and surrounding whitespace fold to the same key.
	response, hit, err := cache.Get(ctx, "s1", "  show me idli batter  ")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "reply", response)

	// Interior whitespace does not.
	_, hit, err = cache.Get(ctx, "s1", "show me  idli batter")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSessionsDoNotShareEntries(t *testing.T) {
	cache, _, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "hello", "reply for s1"))

	_, hit, err := cache.Get(ctx, "s2", "hello")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStaleEntryIsDeletedOnRead(t *testing.T) {
	cache, backend, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "hello", "reply"))
	require.Equal(t, 1, backend.Len())

	*clock = clock.Add(TTL + time.Second)

	_, hit, err := cache.Get(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, backend.Len(), "stale entry should be purged on read")
}

func TestEntryWithinTTLSurvives(t *testing.T) {
	cache, _, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "hello", "reply"))

	*clock = clock.Add(TTL - time.Second)

	response, hit, err := cache.Get(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "reply", response)
}

func TestPutOverwrites(t *testing.T) {
	cache, _, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "s1", "hello", "first"))
	require.NoError(t, cache.Put(ctx, "s1", "hello", "second"))

	response, hit, err := cache.Get(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "second", response)
}

func TestCorruptEntryIsDropped(t *testing.T) {
	cache, backend, _ := newTestCache()
	ctx := context.Background()

	key := Key("s1", "hello")
	require.NoError(t, backend.Set(ctx, key, []byte("{broken"), TTL))

	_, hit, err := cache.Get(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, backend.Len())
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, Key("s1", "Hello "), Key("s1", "hello"))
	assert.NotEqual(t, Key("s1", "hello"), Key("s2", "hello"))
	assert.Len(t, Key("s1", "hello"), 64)
}
