package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	bucketDocs    = []byte("docs")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
)

var _ port.DocumentRegistry = (*BoltStore)(nil)

// BoltStore is the single-file local store: document registry, chunk vectors
// and the index manifest all live in one bolt database.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s is locked by another process", domain.ErrIndexUnavailable, path)
		}
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	MIME       string `json:"mime,omitempty"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	Provider   string `json:"provider,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

func (s *BoltStore) PutDocument(doc domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			Filename:   doc.Filename,
			FileType:   doc.FileType,
			MIME:       doc.MIME,
			PageCount:  doc.PageCount,
			ChunkCount: doc.ChunkCount,
			Provider:   doc.Provider,
			CreatedAt:  doc.CreatedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Put([]byte(doc.ID), data)
	})
}

func (s *BoltStore) GetDocument(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = meta.document(id)
		return nil
	})
	return doc, err
}

func (s *BoltStore) DeleteDocument(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// ListDocuments returns documents oldest first.
func (s *BoltStore) ListDocuments() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, meta.document(string(k)))
			return nil
		})
	})
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, err
}

func (m docMeta) document(id string) domain.Document {
	return domain.Document{
		ID:         id,
		Filename:   m.Filename,
		FileType:   m.FileType,
		MIME:       m.MIME,
		PageCount:  m.PageCount,
		ChunkCount: m.ChunkCount,
		Provider:   m.Provider,
		CreatedAt:  time.Unix(m.CreatedAt, 0),
	}
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
