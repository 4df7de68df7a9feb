package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.VectorIndex = (*BoltVectorIndex)(nil)

// BoltVectorIndex implements port.VectorIndex on a BoltStore.
// Uses brute-force cosine search over an in-memory copy of the vectors.
type BoltVectorIndex struct {
	store *BoltStore
	mu    sync.RWMutex
	// In-memory cache for fast search
	objects map[string]domain.IndexedObject
}

type storedObject struct {
	Vector []float32 `json:"v"`
	Text   string    `json:"text"`
	DocID  string    `json:"doc_id"`
	Page   int       `json:"page"`
}

// NewBoltVectorIndex loads the stored vectors into memory.
func NewBoltVectorIndex(store *BoltStore) (*BoltVectorIndex, error) {
	idx := &BoltVectorIndex{
		store:   store,
		objects: make(map[string]domain.IndexedObject),
	}
	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return idx, nil
}

func (x *BoltVectorIndex) load() error {
	return x.store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedObject
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			x.objects[string(k)] = domain.IndexedObject{
				ID:     string(k),
				Vector: stored.Vector,
				Text:   stored.Text,
				DocID:  stored.DocID,
				Page:   stored.Page,
			}
			return nil
		})
	})
}

// Upsert writes objects in one transaction. Every vector must match the
// manifest dimension when one is recorded.
func (x *BoltVectorIndex) Upsert(_ context.Context, objects []domain.IndexedObject) error {
	if len(objects) == 0 {
		return nil
	}
	m, err := x.store.GetManifest()
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := len(objects[0].Vector)
	if m != nil {
		dim = m.Dimension
	}
	for _, o := range objects {
		if len(o.Vector) != dim {
			return fmt.Errorf("%w: object %s has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, o.ID, len(o.Vector), dim)
		}
	}

	err = x.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, o := range objects {
			data, err := json.Marshal(storedObject{
				Vector: o.Vector,
				Text:   o.Text,
				DocID:  o.DocID,
				Page:   o.Page,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(o.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, o := range objects {
		x.objects[o.ID] = o
	}
	return nil
}

// Query ranks every stored vector by cosine similarity. Ties keep ID order so
// results are stable across calls.
func (x *BoltVectorIndex) Query(_ context.Context, vector []float32, topK int) ([]domain.RetrievalHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return RankCosine(x.objects, vector, topK)
}

func (x *BoltVectorIndex) ResetSchema(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.store.Clear(); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	x.objects = make(map[string]domain.IndexedObject)
	return nil
}

func (x *BoltVectorIndex) Manifest(_ context.Context) (*domain.IndexManifest, error) {
	return x.store.GetManifest()
}

func (x *BoltVectorIndex) SetManifest(_ context.Context, m domain.IndexManifest) error {
	return x.store.PutManifest(m)
}

// DeleteDocument removes a document's vectors. The manifest is dropped once
// the index is empty so the next ingest may choose a provider again.
func (x *BoltVectorIndex) DeleteDocument(_ context.Context, docID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var ids []string
	for id, o := range x.objects {
		if o.DocID == docID {
			ids = append(ids, id)
		}
	}

	err := x.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		if len(ids) == len(x.objects) {
			return tx.Bucket(bucketMeta).Delete(keyManifest)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(x.objects, id)
	}
	return nil
}

func (x *BoltVectorIndex) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.objects), nil
}

// RankCosine scores objects against query and returns the topK best, highest first.
// Ties keep ID order.
func RankCosine(objects map[string]domain.IndexedObject, query []float32, topK int) ([]domain.RetrievalHit, error) {
	if len(objects) == 0 || topK <= 0 {
		return nil, nil
	}

	hits := make([]domain.RetrievalHit, 0, len(objects))
	for id, o := range objects {
		if len(o.Vector) != len(query) {
			return nil, fmt.Errorf("%w: query has dimension %d, index holds %d",
				domain.ErrDimensionMismatch, len(query), len(o.Vector))
		}
		hits = append(hits, domain.RetrievalHit{
			ID:    id,
			Text:  o.Text,
			DocID: o.DocID,
			Page:  o.Page,
			Score: CosineSimilarity(query, o.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
