package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.Embedder = (*OpenAIEmbedder)(nil)

const defaultBatchSize = 100

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	kind      string
	model     string
	batchSize int
	client    *resty.Client
}

// OpenAIConfig configures an OpenAI-compatible embedder.
type OpenAIConfig struct {
	Kind      string // openai, ollama, jina, deepseek
	Model     string
	APIKeyEnv string
	BaseURL   string
	BatchSize int
	Timeout   time.Duration
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the embeddings endpoint.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	return fmt.Sprintf("embeddings API returned status %d (%s): %s", e.StatusCode, e.Code, msg)
}

// Is reports quota and rate-limit answers as domain.ErrQuotaExceeded.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrQuotaExceeded && e.quota()
}

func (e *APIError) quota() bool {
	if e.StatusCode == 429 {
		return true
	}
	for _, s := range []string{e.Code, e.Type} {
		switch s {
		case "insufficient_quota", "rate_limit_exceeded", "resource_exhausted":
			return true
		}
	}
	return false
}

var defaultBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"ollama":   "http://localhost:11434/v1",
	"jina":     "https://api.jina.ai/v1",
	"deepseek": "https://api.deepseek.com/v1",
}

// NewOpenAICompatibleEmbedder builds the embedder. Every kind except ollama needs
// an API key in cfg.APIKeyEnv.
func NewOpenAICompatibleEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Kind == "" {
		cfg.Kind = "openai"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", domain.ErrConfig)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[cfg.Kind]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: no base URL for embedding provider %q", domain.ErrConfig, cfg.Kind)
	}

	apiKey := "ollama"
	if cfg.Kind != "ollama" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: API key not found in environment variable: %s", domain.ErrConfig, cfg.APIKeyEnv)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &OpenAIEmbedder{
		kind:      cfg.Kind,
		model:     cfg.Model,
		batchSize: batch,
		client:    client,
	}, nil
}

func (e *OpenAIEmbedder) Name() string {
	return e.kind + ":" + e.model
}

func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out embeddingResponse
	var apiErr errorResponse

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Input: texts, Model: e.model}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/embeddings")
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingTimeout, e.Name(), err)
		}
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if resp.IsError() {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Type:       apiErr.Error.Type,
			Code:       errorCode(apiErr.Error.Code),
			Message:    apiErr.Error.Message,
			RetryAfter: resp.Header().Get("Retry-After"),
		}
	}

	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embeddings API returned no vector for input %d", i)
		}
	}

	return vectors, nil
}

// errorCode flattens the "code" field, which providers send as a string, a number or null.
func errorCode(raw json.RawMessage) string {
	s := strings.Trim(string(raw), `"`)
	if s == "null" {
		return ""
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
