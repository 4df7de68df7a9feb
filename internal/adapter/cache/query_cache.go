package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// QueryCache keeps recent query embeddings. Entries are keyed by provider and
// text, and a schema reset drops everything through Invalidate.
type QueryCache struct {
	lru      *expirable.LRU[string, []float32]
	indexGen atomic.Uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, []float32](maxSize, nil, ttl),
	}
}

func (c *QueryCache) cacheKey(provider, text string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(c.indexGen.Load(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(provider, text string) ([]float32, bool) {
	return c.lru.Get(c.cacheKey(provider, text))
}

func (c *QueryCache) Put(provider, text string, vector []float32) {
	c.lru.Add(c.cacheKey(provider, text), vector)
}

func (c *QueryCache) Invalidate() {
	c.indexGen.Add(1)
	c.lru.Purge()
}

func (c *QueryCache) Size() int {
	return c.lru.Len()
}

var _ port.EmbeddingProvider = (*CachedProvider)(nil)

// CachedProvider caches pinned query embeddings. Unpinned calls may land on a
// different provider each time, so they always go through.
type CachedProvider struct {
	provider port.EmbeddingProvider
	cache    *QueryCache
}

func NewCachedProvider(provider port.EmbeddingProvider, cache *QueryCache) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}
}

func (p *CachedProvider) Embed(ctx context.Context, texts []string, pin string) (domain.EmbeddingBatch, error) {
	return p.provider.Embed(ctx, texts, pin)
}

func (p *CachedProvider) EmbedOne(ctx context.Context, text string, pin string) (domain.EmbeddingBatch, error) {
	if pin == "" {
		return p.provider.EmbedOne(ctx, text, pin)
	}

	if v, hit := p.cache.Get(pin, text); hit {
		return domain.EmbeddingBatch{Vectors: [][]float32{v}, Provider: pin, Dimension: len(v)}, nil
	}

	batch, err := p.provider.EmbedOne(ctx, text, pin)
	if err != nil {
		return batch, err
	}
	if len(batch.Vectors) == 1 {
		p.cache.Put(batch.Provider, text, batch.Vectors[0])
	}
	return batch, nil
}

// Invalidate drops all cached embeddings.
func (p *CachedProvider) Invalidate() {
	p.cache.Invalidate()
}
