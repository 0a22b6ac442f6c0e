// Package cache provides a bounded load-through cache: LRU storage with
// singleflight so concurrent misses for one key share a single load.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache caches values loaded on demand. A burst of concurrent misses
// for the same key runs the loader once; the other callers wait for and share
// that result. Keys are serialized with keyToString for the LRU and the
// flight group.
type LoaderCache[K comparable, V any] struct {
	entries     *lru.Cache[string, V]
	flight      singleflight.Group
	keyToString func(K) string
}

// NewLoaderCache creates a cache holding at most maxEntries values.
func NewLoaderCache[K comparable, V any](maxEntries int, keyToString func(K) string) (*LoaderCache[K, V], error) {
	entries, err := lru.New[string, V](maxEntries)
	if err != nil {
		return nil, err
	}

	return &LoaderCache[K, V]{
		entries:     entries,
		keyToString: keyToString,
	}, nil
}

// Get returns the cached value for key, running load on a miss. Load errors
// are returned to every coalesced caller and nothing is cached for the key.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, error) {
	keyStr := c.keyToString(key)
	if v, ok := c.entries.Get(keyStr); ok {
		return v, nil
	}

	val, err, _ := c.flight.Do(keyStr, func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			var zero V

			return zero, loadErr
		}

		c.entries.Add(keyStr, loaded)

		return loaded, nil
	})
	if err != nil {
		var zero V

		return zero, err
	}

	return val.(V), nil
}

// Invalidate removes the entry for key, if present.
func (c *LoaderCache[K, V]) Invalidate(key K) {
	c.entries.Remove(c.keyToString(key))
}

// InvalidateAll empties the cache.
func (c *LoaderCache[K, V]) InvalidateAll() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *LoaderCache[K, V]) Len() int {
	return c.entries.Len()
}
