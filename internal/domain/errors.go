package domain

import "errors"

var (
	// ErrInvalidQuery signals a malformed recommendation request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorStoreUnavailable signals a vector store transport or status failure.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a generative-text provider failure.
	// Always recoverable: callers fall back to the deterministic pipeline.
	ErrCompletionProviderError = errors.New("completion provider error")
)
