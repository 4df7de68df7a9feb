package cli

import (
	"fmt"
	"io"
	"os"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/extractor"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/qdrant"
	"docqa/internal/adapter/store"
	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	index    port.VectorIndex
	registry port.DocumentRegistry
	llm      *llm.ChatLLM
	closers  []io.Closer

	ingest *usecase.IngestUseCase
	ask    *usecase.AskUseCase
	schema *usecase.SchemaUseCase
}

func newApp(cfg *config.Config, dir string) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     logger.Default(),
		metrics: metrics.New(),
	}
	if err := a.openIndex(dir); err != nil {
		a.Close()
		return nil, err
	}

	ch, err := chunker.NewSentenceChunker(cfg.Chunk.MaxChars, cfg.Chunk.OverlapChars)
	if err != nil {
		a.Close()
		return nil, err
	}

	chain := embedding.NewChainFromConfig(cfg.Embedding, a.log, a.metrics)
	queryCache := cache.NewQueryCache(cfg.Cache.Size, cfg.Cache.TTL)
	embedder := cache.NewCachedProvider(chain, queryCache)

	a.llm = llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})

	a.ingest = usecase.NewIngestUseCase(extractor.New(a.log), ch, embedder, a.index, a.registry, usecase.IngestConfig{
		UploadDir:  cfg.Upload.Dir,
		MaxBytes:   cfg.Upload.MaxBytes,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	}, a.log, a.metrics)
	a.ask = usecase.NewAskUseCase(
		usecase.NewRetrieveUseCase(embedder, a.index),
		usecase.NewPackUseCase(cfg.Context.MaxChars),
		usecase.NewAnswerUseCase(a.llm),
		cfg.Context.TopK,
		a.log,
		a.metrics,
	)
	a.schema = usecase.NewSchemaUseCase(a.index, a.registry, a.log, embedder)

	a.log.Debug("Pipeline ready",
		"index", cfg.Index.Provider,
		"embedding", chain.PrimaryName(),
		"llm", a.llm.ModelName())
	return a, nil
}

// openIndex picks the vector index. The document registry lives in bbolt
// for both the bolt and qdrant providers.
func (a *app) openIndex(dir string) error {
	cfg := a.cfg
	switch cfg.Index.Provider {
	case "memory":
		a.index = memstore.NewMemoryIndex()
		a.registry = memstore.NewMemoryRegistry()
		return nil
	case "bolt", "qdrant":
	default:
		return fmt.Errorf("unsupported index provider: %s", cfg.Index.Provider)
	}

	if cfg.Index.Path == "" {
		if err := config.EnsureDataDir(dir); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	st, err := store.NewBoltStore(cfg.IndexDBPath(dir))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	a.closers = append(a.closers, st)
	a.registry = st

	if cfg.Index.Provider == "qdrant" {
		idx, err := qdrant.New(qdrant.Config{
			URL:        cfg.Index.URL,
			APIKey:     os.Getenv(cfg.Index.APIKeyEnv),
			Collection: cfg.Index.Collection,
			Distance:   cfg.Index.Distance,
			Timeout:    cfg.Index.Timeout,
		})
		if err != nil {
			return err
		}
		a.index = idx
		return nil
	}

	idx, err := store.NewBoltVectorIndex(st)
	if err != nil {
		return fmt.Errorf("failed to load vector index: %w", err)
	}
	a.index = idx
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
