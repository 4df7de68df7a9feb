package domain

import "errors"

var (
	// ErrInvalidInput indicates a request rejected before any processing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type with no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExtraction indicates a file that could not be read at all.
	// Single unreadable pages degrade to empty pages instead.
	ErrExtraction = errors.New("extraction failed")

	// ErrQuotaExceeded indicates the embedding provider refused the call for capacity reasons.
	// It is the only error that triggers the embedding fallback chain.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrEmbeddingTimeout indicates the embedding provider did not answer in time.
	ErrEmbeddingTimeout = errors.New("embedding request timed out")

	// ErrNoFallback indicates the primary provider is out of quota and no local provider is usable.
	ErrNoFallback = errors.New("no local embedding fallback available")

	// ErrDimensionMismatch indicates vectors that do not match the index manifest.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexUnavailable indicates a transient vector index failure. Safe to retry.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrLLMUnavailable indicates the LLM call failed.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrConfig indicates missing or invalid configuration.
	ErrConfig = errors.New("configuration error")

	ErrNotFound = errors.New("not found")
)

// Invalid returns an error whose message is msg verbatim, suitable for
// showing to the caller, and which matches both kind and ErrInvalidInput.
func Invalid(kind error, msg string) error {
	return &validationError{kind: kind, msg: msg}
}

type validationError struct {
	kind error
	msg  string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool {
	return target == e.kind || target == ErrInvalidInput
}
