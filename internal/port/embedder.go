package port

import (
	"context"

	"docqa/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedDocuments embeds texts, one vector per input in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Name identifies the provider and model, e.g. "openai:text-embedding-3-small".
	// It is persisted in the index manifest.
	Name() string
}

// EmbeddingProvider picks an Embedder for a call.
// An empty pin lets the provider choose (primary first, then fallbacks on quota errors);
// a non-empty pin forces the named embedder.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string, pin string) (domain.EmbeddingBatch, error)
	EmbedOne(ctx context.Context, text string, pin string) (domain.EmbeddingBatch, error)
}

// VectorIndex stores chunk vectors and answers nearest-neighbour queries.
type VectorIndex interface {
	// Upsert adds or replaces objects keyed by their ID.
	Upsert(ctx context.Context, objects []domain.IndexedObject) error

	// Query returns up to topK hits, most relevant first.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievalHit, error)

	// ResetSchema drops every chunk and the manifest. Calling it twice is fine.
	ResetSchema(ctx context.Context) error

	// Manifest returns the stored manifest, or nil when the index is empty.
	Manifest(ctx context.Context) (*domain.IndexManifest, error)

	// SetManifest records m when no manifest exists. An existing manifest with
	// the same provider and dimension is kept as is; any other existing
	// manifest yields domain.ErrDimensionMismatch. The check and the write are atomic.
	SetManifest(ctx context.Context, m domain.IndexManifest) error

	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, docID string) error

	Count(ctx context.Context) (int, error)
}
