package chat

import (
	"context"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Retriever fetches passages from the retrieval API.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]domain.Passage, error)
}

// Generator runs completions and manages local models.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	HasModel(ctx context.Context, model string) (bool, error)
	Pull(ctx context.Context, model string) error
}
