package domain

import "errors"

var (
	// ErrEmptyQuery signals a search request without query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrIndexNotFound signals that the search index does not exist yet.
	ErrIndexNotFound = errors.New("index not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch against the index mapping.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrModelNotReady signals that the language model could not be loaded.
	ErrModelNotReady = errors.New("model not ready")
	// ErrUpstreamUnavailable signals that a dependent service is unreachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNoPassages signals an analyze request without retrieved passages.
	ErrNoPassages = errors.New("no passages to analyze")
)
