package usecase

import (
	"context"
	"fmt"
	"sort"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// RetrieveUseCase handles search and retrieval operations.
type RetrieveUseCase struct {
	embedder port.EmbeddingProvider
	index    port.VectorIndex
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(embedder port.EmbeddingProvider, index port.VectorIndex) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve embeds the query with the provider that populated the index and
// returns up to topK hits, most relevant first. An empty index has no hits.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	manifest, err := u.index.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index manifest: %w", err)
	}
	if manifest == nil {
		return nil, nil
	}

	batch, err := u.embedder.EmbedOne(ctx, query, manifest.Provider)
	if err != nil {
		return nil, err
	}
	if batch.Dimension != manifest.Dimension || len(batch.Vectors) != 1 {
		return nil, fmt.Errorf("%w: query embedding has dimension %d, index holds %d from %s",
			domain.ErrDimensionMismatch, batch.Dimension, manifest.Dimension, manifest.Provider)
	}

	hits, err := u.index.Query(ctx, batch.Vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}
