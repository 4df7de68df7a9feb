package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docqa.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Context   ContextConfig   `yaml:"context"`
	LLM       LLMConfig       `yaml:"llm"`
	Upload    UploadConfig    `yaml:"upload"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retry     RetryConfig     `yaml:"retry"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=bolt memory qdrant"`
	Path       string        `yaml:"path"`                                          // bolt file, defaults to .docqa/index.db
	URL        string        `yaml:"url" validate:"required_if=Provider qdrant"` // qdrant endpoint
	Collection string        `yaml:"collection" validate:"required"`
	Distance   string        `yaml:"distance" validate:"oneof=Cosine Dot Euclid Manhattan"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ChunkConfig holds chunker limits, in characters.
type ChunkConfig struct {
	MaxChars     int `yaml:"max_chars" validate:"gt=0"`
	OverlapChars int `yaml:"overlap_chars" validate:"gte=0"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string         `yaml:"provider" validate:"oneof=openai ollama jina deepseek local tfidf"`
	Model     string         `yaml:"model"`
	APIKeyEnv string         `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string         `yaml:"base_url"`
	BatchSize int            `yaml:"batch_size" validate:"gte=0"`
	Timeout   time.Duration  `yaml:"timeout"`
	Fallback  FallbackConfig `yaml:"fallback"`
}

// FallbackConfig lists the local providers tried after a quota error.
type FallbackConfig struct {
	LocalModel  string `yaml:"local_model"` // empty disables the local semantic fallback
	ModelsDir   string `yaml:"models_dir"`
	TFIDF       bool   `yaml:"tfidf"`
	MaxFeatures int    `yaml:"max_features" validate:"gte=0"`
	Stopwords   bool   `yaml:"stopwords"` // drop common English words before TF-IDF hashing
}

// ContextConfig holds context assembly and retrieval defaults.
type ContextConfig struct {
	MaxChars int `yaml:"max_chars" validate:"gt=0"`
	TopK     int `yaml:"top_k" validate:"gt=0"`
}

// LLMConfig holds the answer model configuration. The API key is read lazily from APIKeyEnv.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required"`
	Model       string        `yaml:"model" validate:"required"`
	APIKeyEnv   string        `yaml:"api_key_env" validate:"required"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout"`
}

// UploadConfig holds temporary upload storage settings.
type UploadConfig struct {
	Dir      string `yaml:"dir"` // empty uses the OS temp dir
	MaxBytes int64  `yaml:"max_bytes" validate:"gt=0"`
}

// IngestConfig filters the files picked up when `docqa ingest` walks a directory.
type IngestConfig struct {
	Includes []string `yaml:"includes"` // doublestar patterns, relative to the walked directory
	Excludes []string `yaml:"excludes"`
}

// RetryConfig bounds retries of idempotent index writes.
type RetryConfig struct {
	MaxRetries uint64        `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// CacheConfig holds the query embedding cache settings.
type CacheConfig struct {
	Size int           `yaml:"size" validate:"gte=0"`
	TTL  time.Duration `yaml:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Index: IndexConfig{
			Provider:   "bolt",
			Collection: "document_chunks",
			Distance:   "Cosine",
			APIKeyEnv:  "QDRANT_API_KEY",
			Timeout:    30 * time.Second,
		},
		Chunk: ChunkConfig{
			MaxChars:     1200,
			OverlapChars: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 100,
			Timeout:   60 * time.Second,
			Fallback: FallbackConfig{
				LocalModel:  "sentence-transformers/all-MiniLM-L6-v2",
				TFIDF:       true,
				MaxFeatures: 4096,
			},
		},
		Context: ContextConfig{
			MaxChars: 2000,
			TopK:     5,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "llama-3.1-8b-instant",
			APIKeyEnv: "GROQ_API_KEY",
			Timeout:   60 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes: 50 << 20,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.{pdf,docx,txt,PDF,DOCX,TXT}"},
			Excludes: []string{"**/.git/**", "**/.docqa/**", "**/node_modules/**"},
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overlays environment variables on top of file values.
// DOCQA_INDEX_URL without DOCQA_INDEX_PROVIDER switches the index to qdrant.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("DOCQA_INDEX_URL"); v != "" {
		c.Index.URL = v
		if getenv("DOCQA_INDEX_PROVIDER") == "" {
			c.Index.Provider = "qdrant"
		}
	}
	if v := getenv("DOCQA_INDEX_PROVIDER"); v != "" {
		c.Index.Provider = strings.ToLower(v)
	}
	if v := getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := getenv("GROQ_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := getenv("DOCQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("DOCQA_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks value constraints declared in struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the bolt index for a root directory,
// unless the config pins one explicitly.
func (c *Config) IndexDBPath(dir string) string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return IndexDBPath(dir)
}

// IndexDBPath returns the default path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".docqa", "index.db")
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docqa"), 0755)
}
