package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStringCache(t *testing.T) (*LoaderCache[string, string], *atomic.Int32, func(context.Context, string) (string, error)) {
	t.Helper()

	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	require.NoError(t, err)

	loads := &atomic.Int32{}
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	return c, loads, load
}

func TestLoaderCacheGet(t *testing.T) {
	ctx := context.Background()

	t.Run("miss loads, hit does not", func(t *testing.T) {
		c, loads, load := newStringCache(t)

		v, err := c.Get(ctx, "a", load)
		require.NoError(t, err)
		assert.Equal(t, "v-a", v)

		v, err = c.Get(ctx, "a", load)
		require.NoError(t, err)
		assert.Equal(t, "v-a", v)
		assert.Equal(t, int32(1), loads.Load())
	})

	t.Run("load errors are not cached", func(t *testing.T) {
		c, _, _ := newStringCache(t)

		_, err := c.Get(ctx, "a", func(_ context.Context, _ string) (string, error) {
			return "", context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, c.Len())
	})
}

func TestLoaderCacheCoalescing(t *testing.T) {
	ctx := context.Background()
	c, loads, load := newStringCache(t)

	var gate sync.WaitGroup
	gate.Add(1)

	var arrived atomic.Int32

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if arrived.Add(1) == 10 {
				gate.Done()
			}

			gate.Wait()

			v, err := c.Get(ctx, "x", load)
			assert.NoError(t, err)
			assert.Equal(t, "v-x", v)
		}()
	}

	wg.Wait()

	// Callers that overlap in flight share one load; scheduling decides how
	// many actually overlap, so only an upper bound is deterministic.
	n := loads.Load()
	assert.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(10))
}

func TestLoaderCacheInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("single key", func(t *testing.T) {
		c, loads, load := newStringCache(t)

		_, err := c.Get(ctx, "a", load)
		require.NoError(t, err)
		require.Equal(t, 1, c.Len())

		c.Invalidate("a")
		assert.Equal(t, 0, c.Len())

		_, err = c.Get(ctx, "a", load)
		require.NoError(t, err)
		assert.Equal(t, int32(2), loads.Load())
	})

	t.Run("all keys", func(t *testing.T) {
		c, _, load := newStringCache(t)

		_, err := c.Get(ctx, "a", load)
		require.NoError(t, err)
		_, err = c.Get(ctx, "b", load)
		require.NoError(t, err)
		require.Equal(t, 2, c.Len())

		c.InvalidateAll()
		assert.Equal(t, 0, c.Len())
	})
}
