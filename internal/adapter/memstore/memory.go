package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	_ port.VectorIndex      = (*MemoryIndex)(nil)
	_ port.DocumentRegistry = (*MemoryRegistry)(nil)
)

// MemoryRegistry is a process-local document registry.
type MemoryRegistry struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{docs: make(map[string]domain.Document)}
}

func (s *MemoryRegistry) PutDocument(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryRegistry) GetDocument(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (s *MemoryRegistry) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryRegistry) ListDocuments() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// MemoryIndex is a process-local vector index with brute-force cosine search.
// Nothing survives a restart; it backs tests and the "memory" index provider.
type MemoryIndex struct {
	mu       sync.RWMutex
	objects  map[string]domain.IndexedObject
	manifest *domain.IndexManifest
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{objects: make(map[string]domain.IndexedObject)}
}

func (s *MemoryIndex) Upsert(_ context.Context, objects []domain.IndexedObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range objects {
		if s.manifest != nil && len(o.Vector) != s.manifest.Dimension {
			return fmt.Errorf("%w: object %s has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, o.ID, len(o.Vector), s.manifest.Dimension)
		}
	}
	for _, o := range objects {
		s.objects[o.ID] = o
	}
	return nil
}

func (s *MemoryIndex) Query(_ context.Context, vector []float32, topK int) ([]domain.RetrievalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.RankCosine(s.objects, vector, topK)
}

func (s *MemoryIndex) ResetSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[string]domain.IndexedObject)
	s.manifest = nil
	return nil
}

func (s *MemoryIndex) Manifest(_ context.Context) (*domain.IndexManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return nil, nil
	}
	m := *s.manifest
	return &m, nil
}

func (s *MemoryIndex) SetManifest(_ context.Context, m domain.IndexManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest != nil {
		if s.manifest.Matches(m) {
			return nil
		}
		return domain.ManifestConflict(*s.manifest, m)
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = store.CurrentSchemaVersion
	}
	s.manifest = &m
	return nil
}

// DeleteDocument drops a document's objects, and the manifest with the last one.
func (s *MemoryIndex) DeleteDocument(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.objects {
		if o.DocID == docID {
			delete(s.objects, id)
		}
	}
	if len(s.objects) == 0 {
		s.manifest = nil
	}
	return nil
}

func (s *MemoryIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects), nil
}

func (s *MemoryIndex) Close() error {
	return nil
}
