package embedder

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/54b3r/kbai-go/internal/rag"
)

// DefaultCacheTTL is how long a query embedding is reused.
const DefaultCacheTTL = 10 * time.Minute

// CachedEmbedder memoizes single-text embeddings, which is the shape of every
// retrieval query. Batch calls (ingestion) go straight to the backend so the
// cache only holds questions.
type CachedEmbedder struct {
	inner rag.Embedder
	cache *cache.Cache
}

// NewCached wraps inner with a TTL cache. A non-positive ttl selects
// DefaultCacheTTL.
func NewCached(inner rag.Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Embed serves a single text from the cache when possible.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.inner.Embed(ctx, texts)
	}
	if v, found := c.cache.Get(texts[0]); found {
		return [][]float32{v.([]float32)}, nil
	}

	vecs, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 1 {
		c.cache.Set(texts[0], vecs[0], cache.DefaultExpiration)
	}
	return vecs, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int { return c.cache.ItemCount() }
