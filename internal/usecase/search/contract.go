package search

import (
	"context"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Repository defines the index store contract for retrieval.
type Repository interface {
	KNNSearch(ctx context.Context, vector []float32, topK int) ([]domain.Passage, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
