package usecase

import (
	"context"
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// Invalidator is anything holding state derived from the index contents.
type Invalidator interface {
	Invalidate()
}

// SchemaUseCase covers index administration: reset, listing and deleting documents.
type SchemaUseCase struct {
	index    port.VectorIndex
	registry port.DocumentRegistry
	caches   []Invalidator
	log      logger.Logger
}

func NewSchemaUseCase(index port.VectorIndex, registry port.DocumentRegistry, log logger.Logger, caches ...Invalidator) *SchemaUseCase {
	if log == nil {
		log = logger.Default()
	}
	return &SchemaUseCase{index: index, registry: registry, caches: caches, log: log}
}

// Reset drops every chunk, the manifest and the registry. Running it twice is fine.
func (u *SchemaUseCase) Reset(ctx context.Context) error {
	if err := u.index.ResetSchema(ctx); err != nil {
		return fmt.Errorf("failed to reset schema: %w", err)
	}
	docs, err := u.registry.ListDocuments()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, d := range docs {
		if err := u.registry.DeleteDocument(d.ID); err != nil {
			return fmt.Errorf("failed to forget document %s: %w", d.ID, err)
		}
	}
	for _, c := range u.caches {
		c.Invalidate()
	}
	u.log.Info("Schema reset", "documents_dropped", len(docs))
	return nil
}

func (u *SchemaUseCase) Documents() ([]domain.Document, error) {
	return u.registry.ListDocuments()
}

// DeleteDocument removes a document's chunks and its registry entry.
func (u *SchemaUseCase) DeleteDocument(ctx context.Context, id string) error {
	if _, err := u.registry.GetDocument(id); err != nil {
		return err
	}
	if err := u.index.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", id, err)
	}
	if err := u.registry.DeleteDocument(id); err != nil {
		return err
	}
	u.log.Info("Document deleted", "doc_id", id)
	return nil
}

// Stats reports the number of indexed chunks and the manifest, if any.
func (u *SchemaUseCase) Stats(ctx context.Context) (int, *domain.IndexManifest, error) {
	n, err := u.index.Count(ctx)
	if err != nil {
		return 0, nil, err
	}
	m, err := u.index.Manifest(ctx)
	if err != nil {
		return 0, nil, err
	}
	return n, m, nil
}
