package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Document is an ingested file. Its pages are not stored; only the counts survive ingestion.
type Document struct {
	ID         string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	MIME       string    `json:"mime,omitempty"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	Provider   string    `json:"provider,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is a bounded span of one page of a document.
type Chunk struct {
	ID    string
	DocID string
	Page  int // 1-based
	Index int // 0-based, increasing across the whole document
	Text  string
}

type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// IndexedObject is the unit persisted in a vector index.
type IndexedObject struct {
	ID     string
	Vector []float32
	Text   string
	DocID  string
	Page   int
}

// RetrievalHit is a query result. Higher Score means more relevant.
type RetrievalHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	DocID string  `json:"doc_id"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
}

// Context is the prompt-ready text built from ranked hits plus the hits that made it in.
type Context struct {
	Text string
	Used []RetrievalHit
}

// IndexManifest tags a collection with the embedding provider and dimension that populated it.
type IndexManifest struct {
	Provider      string    `json:"provider"`
	Dimension     int       `json:"dimension"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Matches reports whether o records the same provider and dimension.
func (m IndexManifest) Matches(o IndexManifest) bool {
	return m.Provider == o.Provider && m.Dimension == o.Dimension
}

// ManifestConflict reports an attempt to record want over an existing manifest.
func ManifestConflict(existing, want IndexManifest) error {
	return fmt.Errorf("%w: index already holds %s vectors of dimension %d, cannot record %s with dimension %d",
		ErrDimensionMismatch, existing.Provider, existing.Dimension, want.Provider, want.Dimension)
}

// EmbeddingBatch holds the vectors of one embedding call. All vectors come from Provider.
type EmbeddingBatch struct {
	Vectors   [][]float32
	Provider  string
	Dimension int
}

type IngestResult struct {
	DocID      string `json:"doc_id"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
}

type AskRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=100"`
	Model string `json:"model,omitempty"`
}

type Source struct {
	DocID       string `json:"doc_id"`
	Page        int    `json:"page"`
	TextSnippet string `json:"text_snippet"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SupportedFileTypes are the extensions, lower case and without the dot, that can be ingested.
var SupportedFileTypes = []string{"pdf", "docx", "txt"}

// FileType returns the lower-case extension of filename without the dot.
func FileType(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func IsSupportedFileType(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range SupportedFileTypes {
		if t == ext {
			return true
		}
	}
	return false
}
