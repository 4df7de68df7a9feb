package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.LLM = (*ChatLLM)(nil)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"

	// model names come from requests; older clients are evicted past this
	maxModelClients = 8
)

type Config struct {
	BaseURL     string
	Model       string
	APIKeyEnv   string
	Temperature float64
	Timeout     time.Duration
}

// ChatLLM talks to an OpenAI-compatible chat completions API, Groq by default.
// The API key is read on first use, so a server without a key still starts
// and serves ingestion.
type ChatLLM struct {
	cfg    Config
	getenv func(string) string

	mu     sync.Mutex
	models *lru.Cache[string, llms.Model]
}

func New(cfg Config) *ChatLLM {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GROQ_API_KEY"
	}
	models, _ := lru.New[string, llms.Model](maxModelClients) // only fails for a non-positive size
	return &ChatLLM{
		cfg:    cfg,
		getenv: os.Getenv,
		models: models,
	}
}

func (c *ChatLLM) ModelName() string {
	return c.cfg.Model
}

// Generate sends prompt as a single user message and returns the completion.
func (c *ChatLLM) Generate(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.cfg.Model
	}
	m, err := c.model(model)
	if err != nil {
		return "", err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, m, prompt, llms.WithTemperature(c.cfg.Temperature))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLLMUnavailable, model, err)
	}
	return out, nil
}

func (c *ChatLLM) model(name string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models.Get(name); ok {
		return m, nil
	}

	key := strings.TrimSpace(c.getenv(c.cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrConfig, c.cfg.APIKeyEnv)
	}

	m, err := openai.New(
		openai.WithToken(key),
		openai.WithModel(name),
		openai.WithBaseURL(c.cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create LLM client: %v", domain.ErrConfig, err)
	}
	c.models.Add(name, m)
	return m, nil
}
