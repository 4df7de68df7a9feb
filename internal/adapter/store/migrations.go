package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyManifest      = []byte("manifest")
)

// SchemaInfo describes the on-disk layout of the database file.
type SchemaInfo struct {
	Version int `json:"version"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaVersion)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info.Version)
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

// Migrate brings an older file up to CurrentSchemaVersion. A file written by a
// newer version is refused rather than guessed at.
func (s *BoltStore) Migrate() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return fmt.Errorf("failed to get schema info: %w", err)
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: database created by newer version (v%d > v%d)",
			domain.ErrConfig, info.Version, CurrentSchemaVersion)
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}
	if info.Version == CurrentSchemaVersion {
		return nil
	}
	return s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		// fresh file, buckets already exist
		return nil
	default:
		return nil
	}
}

// GetManifest returns the stored manifest, or nil when none is recorded.
func (s *BoltStore) GetManifest() (*domain.IndexManifest, error) {
	var m *domain.IndexManifest
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyManifest)
		if data == nil {
			return nil
		}
		m = &domain.IndexManifest{}
		return json.Unmarshal(data, m)
	})
	return m, err
}

// PutManifest records m unless a manifest is already stored. A stored manifest
// with the same provider and dimension is kept; any other is a conflict.
func (s *BoltStore) PutManifest(m domain.IndexManifest) error {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = CurrentSchemaVersion
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if existing := b.Get(keyManifest); existing != nil {
			var cur domain.IndexManifest
			if err := json.Unmarshal(existing, &cur); err != nil {
				return fmt.Errorf("failed to decode manifest: %w", err)
			}
			if cur.Matches(m) {
				return nil
			}
			return domain.ManifestConflict(cur, m)
		}
		return b.Put(keyManifest, data)
	})
}

// Clear drops every stored vector and the manifest. The schema version and
// the document registry survive.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete(keyManifest)
	})
}
