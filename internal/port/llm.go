package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate sends a single prompt and returns the raw completion text.
	// An empty model selects the configured default.
	Generate(ctx context.Context, prompt, model string) (string, error)

	// ModelName returns the default model.
	ModelName() string
}
