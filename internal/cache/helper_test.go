package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	InitRedis(mr.Addr())
	t.Cleanup(func() { client = nil })
	return mr
}

func TestGetSetJSON(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	found, err := GetJSON(ctx, "missing", &payload{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, "k", payload{Name: "springfield"}, time.Minute))

	var got payload
	found, err = GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "springfield", got.Name)
}

func TestCacheAside(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *[]string) func() error {
		return func() error {
			fetches++
			*dest = []string{"a", "b"}
			return nil
		}
	}

	var first []string
	require.NoError(t, CacheAside(ctx, "feed", &first, time.Minute, fetch(&first)))
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, 1, fetches)

	// Second call is served from Redis without hitting the source.
	var second []string
	require.NoError(t, CacheAside(ctx, "feed", &second, time.Minute, fetch(&second)))
	assert.Equal(t, []string{"a", "b"}, second)
	assert.Equal(t, 1, fetches)
}

func TestCacheAside_FetchError(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	boom := errors.New("db down")
	var dest []string
	err := CacheAside(ctx, "feed", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// A failed fetch must not be cached.
	found, err := GetJSON(ctx, "feed", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidateLocalityFeed(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	key := LocalityFeedKey("springfield")
	require.NoError(t, SetJSON(ctx, key, []string{"x"}, time.Minute))
	require.True(t, mr.Exists(key))

	InvalidateLocalityFeed(ctx, "springfield")
	assert.False(t, mr.Exists(key))
}

func TestHelpers_NoClient(t *testing.T) {
	client = nil
	ctx := context.Background()

	found, err := GetJSON(ctx, "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, SetJSON(ctx, "k", "v", time.Minute))

	// Without Redis, CacheAside degrades to a plain fetch every time.
	fetches := 0
	var dest string
	require.NoError(t, CacheAside(ctx, "k", &dest, time.Minute, func() error {
		fetches++
		dest = "fresh"
		return nil
	}))
	assert.Equal(t, "fresh", dest)
	assert.Equal(t, 1, fetches)

	InvalidateLocalityFeed(ctx, "springfield") // must not panic
}
