package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"

	"docqa/internal/port"
)

var _ port.Embedder = (*LocalEmbedder)(nil)

// LocalEmbedder runs a sentence-transformers model in-process through cybertron.
type LocalEmbedder struct {
	model string
	impl  embeddings.Embedder
}

// NewLocalEmbedder loads model from modelsDir, downloading it on first use when missing.
// Loading is slow; callers keep one instance per process.
func NewLocalEmbedder(model, modelsDir string, batchSize int) (*LocalEmbedder, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("local embedding model is not configured")
	}
	opts := []cybertron.Option{cybertron.WithModel(model)}
	if modelsDir != "" {
		opts = append(opts, cybertron.WithModelsDir(modelsDir))
	}
	client, err := cybertron.NewCybertron(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load local model %s: %w", model, err)
	}

	if batchSize <= 0 {
		batchSize = 32
	}
	impl, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to construct local embedder: %w", err)
	}
	return &LocalEmbedder{model: model, impl: impl}, nil
}

// WrapLocal adapts any langchaingo embedder, mainly for tests.
func WrapLocal(model string, impl embeddings.Embedder) *LocalEmbedder {
	return &LocalEmbedder{model: model, impl: impl}
}

func (e *LocalEmbedder) Name() string {
	return "local:" + e.model
}

func (e *LocalEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.impl.EmbedDocuments(ctx, texts)
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.impl.EmbedQuery(ctx, text)
}
