package port

import "docqa/internal/domain"

type Chunker interface {
	Chunk(docID string, pages []string) ([]domain.Chunk, error)
}

// Extractor turns a file on disk into ordered page texts.
type Extractor interface {
	// Sniff checks that data looks like a file of type ext and returns its MIME type.
	Sniff(ext string, data []byte) (string, error)

	// Extract returns one string per page. Unreadable pages come back empty.
	Extract(path string) ([]string, error)
}

// DocumentRegistry records ingested documents.
type DocumentRegistry interface {
	PutDocument(doc domain.Document) error
	GetDocument(id string) (domain.Document, error)
	ListDocuments() ([]domain.Document, error)
	DeleteDocument(id string) error
}
