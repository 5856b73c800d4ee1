package health

import "context"

// IndexStore checks index store availability and index presence.
type IndexStore interface {
	HealthCheck(ctx context.Context) error
	IndexExists(ctx context.Context) (bool, error)
	Index() string
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
