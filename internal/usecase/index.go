package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"docqa/internal/adapter/cleaner"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/port"
)

// IngestConfig bounds uploads and index write retries.
type IngestConfig struct {
	UploadDir  string // empty uses the OS temp dir
	MaxBytes   int64  // 0 disables the size check
	MaxRetries uint64
	BaseDelay  time.Duration
}

// IngestUseCase turns an uploaded file into indexed chunks.
type IngestUseCase struct {
	extractor port.Extractor
	chunker   port.Chunker
	embedder  port.EmbeddingProvider
	index     port.VectorIndex
	registry  port.DocumentRegistry
	cfg       IngestConfig
	log       logger.Logger
	metrics   *metrics.Metrics

	newID func() string
	now   func() time.Time
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.EmbeddingProvider,
	index port.VectorIndex,
	registry port.DocumentRegistry,
	cfg IngestConfig,
	log logger.Logger,
	m *metrics.Metrics,
) *IngestUseCase {
	if log == nil {
		log = logger.Default()
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	return &IngestUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		registry:  registry,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Validate checks an upload without touching the disk.
func (u *IngestUseCase) Validate(filename string, size int64) error {
	if size == 0 {
		return domain.Invalid(domain.ErrInvalidInput, "Uploaded file is empty")
	}
	ext := domain.FileType(filename)
	if ext == "" {
		return domain.Invalid(domain.ErrInvalidInput, "Filename must include an extension")
	}
	if !domain.IsSupportedFileType(ext) {
		return domain.Invalid(domain.ErrUnsupportedType, "Unsupported file type: "+ext)
	}
	if u.cfg.MaxBytes > 0 && size > u.cfg.MaxBytes {
		return domain.Invalid(domain.ErrInvalidInput,
			"Uploaded file exceeds "+strconv.FormatInt(u.cfg.MaxBytes, 10)+" bytes")
	}
	return nil
}

// Ingest runs extract, clean, chunk, embed and upsert for one file. The
// document is registered only after its chunks are in the index.
func (u *IngestUseCase) Ingest(ctx context.Context, filename string, data []byte) (domain.IngestResult, error) {
	start := time.Now()
	if err := u.Validate(filename, int64(len(data))); err != nil {
		return domain.IngestResult{}, err
	}
	ext := domain.FileType(filename)

	mime, err := u.extractor.Sniff(ext, data)
	if err != nil {
		return domain.IngestResult{}, err
	}

	docID := u.newID()
	log := u.log.With("doc_id", docID, "filename", filepath.Base(filename))
	log.Info("Ingesting document", "type", ext, "bytes", len(data))

	pages, err := u.extract(docID, ext, data)
	if err != nil {
		return domain.IngestResult{}, err
	}

	pages, removed := cleaner.CleanPages(pages)
	log.Debug("Cleaned pages", "pages", len(pages), "removed_chars", removed)

	chunks, err := u.chunker.Chunk(docID, pages)
	if err != nil {
		return domain.IngestResult{}, err
	}

	provider, err := u.indexChunks(ctx, log, docID, chunks)
	if err != nil {
		return domain.IngestResult{}, err
	}

	doc := domain.Document{
		ID:         docID,
		Filename:   filepath.Base(filename),
		FileType:   ext,
		MIME:       mime,
		PageCount:  len(pages),
		ChunkCount: len(chunks),
		Provider:   provider,
		CreatedAt:  u.now().UTC(),
	}
	if err := u.registry.PutDocument(doc); err != nil {
		return domain.IngestResult{}, fmt.Errorf("failed to record document: %w", err)
	}

	u.metrics.DocumentIngested(ext, len(chunks))
	log.Info("Document ingested",
		"pages", len(pages),
		"chunks", len(chunks),
		"provider", provider,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return domain.IngestResult{DocID: docID, PageCount: len(pages), ChunkCount: len(chunks)}, nil
}

// extract writes the upload to {doc_id}.{ext} and always removes it.
func (u *IngestUseCase) extract(docID, ext string, data []byte) ([]string, error) {
	dir := u.cfg.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, docID+"."+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	defer os.Remove(path)

	return u.extractor.Extract(path)
}

// indexChunks embeds all chunks in one batch, so one provider produced every
// vector of the document, and upserts them. It returns the provider name.
func (u *IngestUseCase) indexChunks(ctx context.Context, log logger.Logger, docID string, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		log.Warn("Document produced no chunks")
		return "", nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	batch, created, err := u.embedForIndex(ctx, log, texts)
	if err != nil {
		return "", err
	}

	objects := make([]domain.IndexedObject, len(chunks))
	for i, c := range chunks {
		objects[i] = domain.IndexedObject{
			ID:     c.ID,
			Vector: batch.Vectors[i],
			Text:   c.Text,
			DocID:  c.DocID,
			Page:   c.Page,
		}
	}

	if err := u.upsert(ctx, log, objects); err != nil {
		if created {
			// leave an empty index free to pick its provider again
			_ = u.index.DeleteDocument(ctx, docID)
		}
		return "", err
	}
	return batch.Provider, nil
}

// embedForIndex embeds texts with the provider recorded in the index manifest,
// recording a manifest when there is none. If a concurrent ingest records a
// different manifest first, the texts are embedded again with the winner.
func (u *IngestUseCase) embedForIndex(ctx context.Context, log logger.Logger, texts []string) (domain.EmbeddingBatch, bool, error) {
	manifest, err := u.index.Manifest(ctx)
	if err != nil {
		return domain.EmbeddingBatch{}, false, fmt.Errorf("failed to read index manifest: %w", err)
	}

	for attempt := 0; ; attempt++ {
		pin := ""
		if manifest != nil {
			pin = manifest.Provider
		}
		batch, err := u.embedder.Embed(ctx, texts, pin)
		if err != nil {
			return domain.EmbeddingBatch{}, false, err
		}
		if len(batch.Vectors) != len(texts) {
			return domain.EmbeddingBatch{}, false,
				fmt.Errorf("embedding returned %d vectors for %d chunks", len(batch.Vectors), len(texts))
		}

		if manifest != nil {
			if batch.Dimension != manifest.Dimension {
				return domain.EmbeddingBatch{}, false, fmt.Errorf(
					"%w: provider %s produced dimension %d, index holds %d; reset the index or configure %s",
					domain.ErrDimensionMismatch, batch.Provider, batch.Dimension, manifest.Dimension, manifest.Provider)
			}
			return batch, false, nil
		}

		m := domain.IndexManifest{Provider: batch.Provider, Dimension: batch.Dimension, CreatedAt: u.now().UTC()}
		err = u.index.SetManifest(ctx, m)
		if err == nil {
			log.Info("Index manifest recorded", "provider", batch.Provider, "dimension", batch.Dimension)
			return batch, true, nil
		}
		if !errors.Is(err, domain.ErrDimensionMismatch) || attempt > 0 {
			return domain.EmbeddingBatch{}, false, fmt.Errorf("failed to record index manifest: %w", err)
		}

		manifest, err = u.index.Manifest(ctx)
		if err != nil {
			return domain.EmbeddingBatch{}, false, fmt.Errorf("failed to read index manifest: %w", err)
		}
		if manifest == nil {
			return domain.EmbeddingBatch{}, false, fmt.Errorf("index manifest vanished during ingest: %w", domain.ErrIndexUnavailable)
		}
		log.Warn("Index manifest recorded concurrently, embedding again",
			"provider", manifest.Provider, "discarded", batch.Provider)
	}
}

// upsert retries transient index failures. Object IDs are chunk IDs, so a
// retry after a partly applied write replaces rather than duplicates.
func (u *IngestUseCase) upsert(ctx context.Context, log logger.Logger, objects []domain.IndexedObject) error {
	backoff := retry.WithMaxRetries(u.cfg.MaxRetries, retry.NewExponential(u.cfg.BaseDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := u.index.Upsert(ctx, objects)
		if err != nil && errors.Is(err, domain.ErrIndexUnavailable) {
			log.Warn("Index upsert failed, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(objects), err)
	}
	return nil
}
