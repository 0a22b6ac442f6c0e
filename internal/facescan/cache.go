package facescan

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingExtractor wraps an Extractor with an LRU cache keyed by the image
// digest. The same capture is often submitted twice in a row (login followed
// by feedback on the same frame). Only successful extractions are cached;
// callers may retry failed bytes after a service hiccup.
type CachingExtractor struct {
	inner Extractor
	cache *lru.Cache[[32]byte, []float32]
}

// NewCachingExtractor wraps inner with a cache of the given size.
func NewCachingExtractor(inner Extractor, size int) (*CachingExtractor, error) {
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		return nil, err
	}

	return &CachingExtractor{inner: inner, cache: cache}, nil
}

// Extract returns the cached embedding for this exact image if present,
// otherwise delegates to the wrapped extractor.
func (c *CachingExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	key := sha256.Sum256(image)

	if embedding, ok := c.cache.Get(key); ok {
		return embedding, nil
	}

	embedding, err := c.inner.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, embedding)

	return embedding, nil
}

// Dimension returns the wrapped extractor's embedding dimension.
func (c *CachingExtractor) Dimension() int {
	return c.inner.Dimension()
}

// Ensure CachingExtractor implements Extractor.
var _ Extractor = (*CachingExtractor)(nil)
