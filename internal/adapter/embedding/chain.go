package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/port"
)

var _ port.EmbeddingProvider = (*Chain)(nil)

// Chain is the primary embedder followed by ordered local fallbacks.
// Fallbacks only run after the primary reports domain.ErrQuotaExceeded.
type Chain struct {
	primary   *handle
	fallbacks []*handle
	log       logger.Logger
	metrics   *metrics.Metrics
}

type ChainOption func(*Chain)

func WithLogger(l logger.Logger) ChainOption {
	return func(c *Chain) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

func NewChain(primary Provider, fallbacks []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		primary: newHandle(primary),
		log:     logger.Default(),
	}
	for _, fb := range fallbacks {
		c.fallbacks = append(c.fallbacks, newHandle(fb))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PrimaryName returns the name of the preferred provider.
func (c *Chain) PrimaryName() string {
	return c.primary.name
}

// Embed embeds document texts. All vectors of the returned batch come from one provider.
func (c *Chain) Embed(ctx context.Context, texts []string, pin string) (domain.EmbeddingBatch, error) {
	if len(texts) == 0 {
		return domain.EmbeddingBatch{}, nil
	}
	return c.run(ctx, pin, func(e port.Embedder) ([][]float32, error) {
		return e.EmbedDocuments(ctx, texts)
	})
}

// EmbedOne embeds a single query text.
func (c *Chain) EmbedOne(ctx context.Context, text string, pin string) (domain.EmbeddingBatch, error) {
	return c.run(ctx, pin, func(e port.Embedder) ([][]float32, error) {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return [][]float32{v}, nil
	})
}

func (c *Chain) run(ctx context.Context, pin string, call func(port.Embedder) ([][]float32, error)) (domain.EmbeddingBatch, error) {
	if pin != "" {
		return c.runPinned(pin, call)
	}

	e, err := c.primary.get()
	if err != nil {
		return domain.EmbeddingBatch{}, fmt.Errorf("embedding provider %s unavailable: %w", c.primary.name, err)
	}
	vectors, err := call(e)
	if err == nil {
		return newBatch(c.primary.name, vectors)
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		return domain.EmbeddingBatch{}, fmt.Errorf("embedding with %s failed: %w", c.primary.name, err)
	}

	log := c.log.With("primary", c.primary.name)
	log.Warn("Embedding quota exhausted, trying local fallbacks", "error", err)

	var unavailable []string
	for _, fb := range c.fallbacks {
		fe, ferr := fb.get()
		if ferr != nil {
			log.Warn("Embedding fallback unavailable", "fallback", fb.name, "error", ferr)
			unavailable = append(unavailable, fmt.Sprintf("%s (%v)", fb.name, ferr))
			continue
		}
		vectors, ferr := call(fe)
		if ferr != nil {
			return domain.EmbeddingBatch{}, fmt.Errorf("fallback embedding with %s failed: %w", fb.name, ferr)
		}
		c.metrics.FallbackActivated(c.primary.name, fb.name)
		log.Warn("Embedded with fallback provider", "fallback", fb.name)
		return newBatch(fb.name, vectors)
	}

	return domain.EmbeddingBatch{}, noFallbackError(err, unavailable)
}

func (c *Chain) runPinned(pin string, call func(port.Embedder) ([][]float32, error)) (domain.EmbeddingBatch, error) {
	h := c.lookup(pin)
	if h == nil {
		return domain.EmbeddingBatch{}, fmt.Errorf(
			"%w: the index was built with embedding provider %q, which is not configured; configure it or reset the index",
			domain.ErrDimensionMismatch, pin)
	}
	e, err := h.get()
	if err != nil {
		return domain.EmbeddingBatch{}, fmt.Errorf("embedding provider %s unavailable: %w", pin, err)
	}
	vectors, err := call(e)
	if err != nil {
		return domain.EmbeddingBatch{}, fmt.Errorf("embedding with %s failed: %w", pin, err)
	}
	return newBatch(pin, vectors)
}

func (c *Chain) lookup(name string) *handle {
	if c.primary.name == name {
		return c.primary
	}
	for _, fb := range c.fallbacks {
		if fb.name == name {
			return fb
		}
	}
	return nil
}

func noFallbackError(cause error, unavailable []string) error {
	if len(unavailable) == 0 {
		return fmt.Errorf("%w: no local fallback is configured; set embedding.fallback.local_model "+
			"(sentence-transformers model) or enable embedding.fallback.tfidf: %v", domain.ErrNoFallback, cause)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrNoFallback, strings.Join(unavailable, "; "), cause)
}

func newBatch(provider string, vectors [][]float32) (domain.EmbeddingBatch, error) {
	if len(vectors) == 0 {
		return domain.EmbeddingBatch{Provider: provider}, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return domain.EmbeddingBatch{}, fmt.Errorf("provider %s returned vector %d with dimension %d, expected %d",
				provider, i, len(v), dim)
		}
	}
	return domain.EmbeddingBatch{Vectors: vectors, Provider: provider, Dimension: dim}, nil
}
