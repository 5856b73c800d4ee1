package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// buildMapping renders the kNN index mapping: an HNSW cosine-similarity
// vector field next to the chunk text and its metadata object.
func buildMapping(cfg Config) ([]byte, error) {
	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				cfg.EmbeddingField: map[string]any{
					"type":      "knn_vector",
					"dimension": cfg.VectorDim,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "nmslib",
					},
				},
				cfg.TextField: map[string]any{
					"type": "text",
				},
				"metadata": map[string]any{
					"type": "object",
				},
			},
		},
		"settings": map[string]any{
			"index": map[string]any{
				"knn": true,
			},
		},
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("marshal mapping: %w", err)
	}
	return data, nil
}

// EnsureIndex creates the index with the kNN mapping iff it does not exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	mapping, err := buildMapping(s.cfg)
	if err != nil {
		return err
	}

	res, err := s.client.Indices.Create(
		s.cfg.Index,
		s.client.Indices.Create.WithBody(strings.NewReader(string(mapping))),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.cfg.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// Race-safe: a concurrent creator is fine.
		if exists, eerr := s.IndexExists(ctx); eerr == nil && exists {
			return nil
		}
		return fmt.Errorf("create index %s: status %d", s.cfg.Index, res.StatusCode)
	}

	s.logger.Info("Created index", zap.String("index", s.cfg.Index))
	return nil
}
