// Package search implements semantic retrieval: embed the query, run kNN
// over the index, return scored passages.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Service handles semantic passage retrieval.
type Service struct {
	repo    Repository
	embed   Embedder
	topK    int
	maxTopK int
}

// New creates a search service. topK is the default when a request does not
// ask for a specific count; maxTopK caps client-supplied values.
func New(repo Repository, embed Embedder, topK, maxTopK int) *Service {
	return &Service{repo: repo, embed: embed, topK: topK, maxTopK: maxTopK}
}

// Search embeds query and returns the nearest passages by cosine similarity.
// topK<=0 falls back to the configured default.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	if topK <= 0 {
		topK = s.topK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	passages, err := s.repo.KNNSearch(ctx, embResult.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return passages, nil
}
