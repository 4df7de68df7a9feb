package embedding

import (
	"docqa/config"
	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/port"
)

// NewChainFromConfig builds the configured primary embedder followed by the
// enabled local fallbacks, local semantic model first and TF-IDF last.
// Nothing is loaded or dialled until the first call that needs it.
func NewChainFromConfig(cfg config.EmbeddingConfig, log logger.Logger, m *metrics.Metrics) *Chain {
	local := localProvider(cfg.Fallback.LocalModel, cfg.Fallback.ModelsDir, cfg.BatchSize)
	tfidf := tfidfProvider(cfg.Fallback.MaxFeatures, cfg.Fallback.Stopwords)

	var primary Provider
	var fallbacks []Provider
	switch cfg.Provider {
	case "local":
		model := cfg.Model
		if model == "" || model == config.DefaultConfig().Embedding.Model {
			model = cfg.Fallback.LocalModel
		}
		primary = localProvider(model, cfg.Fallback.ModelsDir, cfg.BatchSize)
		if cfg.Fallback.TFIDF {
			fallbacks = append(fallbacks, tfidf)
		}
	case "tfidf":
		primary = tfidf
	default:
		primary = remoteProvider(cfg)
		if cfg.Fallback.LocalModel != "" {
			fallbacks = append(fallbacks, local)
		}
		if cfg.Fallback.TFIDF {
			fallbacks = append(fallbacks, tfidf)
		}
	}

	return NewChain(primary, fallbacks, WithLogger(log), WithMetrics(m))
}

func remoteProvider(cfg config.EmbeddingConfig) Provider {
	kind := cfg.Provider
	if kind == "" {
		kind = "openai"
	}
	return Provider{
		Name: kind + ":" + cfg.Model,
		Build: func() (port.Embedder, error) {
			return NewOpenAICompatibleEmbedder(OpenAIConfig{
				Kind:      kind,
				Model:     cfg.Model,
				APIKeyEnv: cfg.APIKeyEnv,
				BaseURL:   cfg.BaseURL,
				BatchSize: cfg.BatchSize,
				Timeout:   cfg.Timeout,
			})
		},
	}
}

func localProvider(model, modelsDir string, batchSize int) Provider {
	return Provider{
		Name: "local:" + model,
		Build: func() (port.Embedder, error) {
			return NewLocalEmbedder(model, modelsDir, batchSize)
		},
	}
}

func tfidfProvider(maxFeatures int, stopwords bool) Provider {
	if maxFeatures <= 0 {
		maxFeatures = 4096
	}
	return Provider{
		Name: tfidfName(maxFeatures, stopwords),
		Build: func() (port.Embedder, error) {
			return NewTFIDFEmbedder(maxFeatures, WithStopwords(stopwords)), nil
		},
	}
}
