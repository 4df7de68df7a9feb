package usecase

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/memstore"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// pagedExtractor reads a text file and treats form feeds as page breaks.
type pagedExtractor struct {
	calls int
}

func (e *pagedExtractor) Sniff(ext string, _ []byte) (string, error) {
	return "text/plain; charset=utf-8", nil
}

func (e *pagedExtractor) Extract(path string) ([]string, error) {
	e.calls++
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\f"), nil
}

// quotaEmbedder always reports exhausted quota.
type quotaEmbedder struct {
	calls int
}

func (q *quotaEmbedder) Name() string { return "openai:text-embedding-3-small" }

func (q *quotaEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	q.calls++
	return nil, &embedding.APIError{StatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota"}
}

func (q *quotaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	_, err := q.EmbedDocuments(ctx, []string{text})
	return nil, err
}

// flakyIndex fails the first n upserts with a transient error.
type flakyIndex struct {
	*memstore.MemoryIndex
	mu       sync.Mutex
	failures int
	upserts  int
}

func (f *flakyIndex) Upsert(ctx context.Context, objs []domain.IndexedObject) error {
	f.mu.Lock()
	f.upserts++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return domain.ErrIndexUnavailable
	}
	return f.MemoryIndex.Upsert(ctx, objs)
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
	models  []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt, model string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

type pipeline struct {
	extractor *pagedExtractor
	index     port.VectorIndex
	registry  *memstore.MemoryRegistry
	embedder  *embedding.Chain
	llm       *fakeLLM
	uploadDir string

	ingest *IngestUseCase
	ask    *AskUseCase
	schema *SchemaUseCase
}

func newPipeline(t *testing.T, index port.VectorIndex, primary port.Embedder, maxChars, overlap int) *pipeline {
	t.Helper()
	if index == nil {
		index = memstore.NewMemoryIndex()
	}
	tfidf := embedding.NewTFIDFEmbedder(4096)
	var chain *embedding.Chain
	if primary == nil {
		chain = embedding.NewChain(embedding.Static(tfidf), nil, embedding.WithLogger(logger.NewNop()))
	} else {
		chain = embedding.NewChain(embedding.Static(primary), []embedding.Provider{embedding.Static(tfidf)},
			embedding.WithLogger(logger.NewNop()))
	}

	ch, err := chunker.NewSentenceChunker(maxChars, overlap)
	require.NoError(t, err)

	p := &pipeline{
		extractor: &pagedExtractor{},
		index:     index,
		registry:  memstore.NewMemoryRegistry(),
		embedder:  chain,
		llm:       &fakeLLM{reply: "  The answer [doc:2]  "},
		uploadDir: t.TempDir(),
	}
	p.ingest = NewIngestUseCase(p.extractor, ch, chain, index, p.registry, IngestConfig{
		UploadDir:  p.uploadDir,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	}, logger.NewNop(), nil)
	p.ask = NewAskUseCase(
		NewRetrieveUseCase(chain, index),
		NewPackUseCase(2000),
		NewAnswerUseCase(p.llm),
		5, logger.NewNop(), nil)
	p.schema = NewSchemaUseCase(index, p.registry, logger.NewNop())
	return p
}

// fixedEmbedder returns deterministic vectors of one dimension. With a gate,
// its first call waits until every other gated embedder has been called.
type fixedEmbedder struct {
	name  string
	dim   int
	gate  *sync.WaitGroup
	once  sync.Once
	mu    sync.Mutex
	calls int
}

func (f *fixedEmbedder) Name() string { return f.name }

func (f *fixedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		f.once.Do(f.gate.Done)
		f.gate.Wait()
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		v[f.dim-1] += float32(len(text))
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fixedEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
