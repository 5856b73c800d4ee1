package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// buildKNNQuery renders the script_score knn_score query over the embedding
// field, returning the text field and metadata for the topK nearest chunks.
func buildKNNQuery(cfg Config, vector []float32, topK int) ([]byte, error) {
	query := map[string]any{
		"size":    topK,
		"_source": []string{cfg.TextField, "metadata"},
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{
					"match_all": map[string]any{},
				},
				"script": map[string]any{
					"lang":   "knn",
					"source": "knn_score",
					"params": map[string]any{
						"field":       cfg.EmbeddingField,
						"query_value": vector,
						"space_type":  "cosinesimil",
					},
				},
			},
		},
	}
	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal knn query: %w", err)
	}
	return data, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                    `json:"_score"`
			Source map[string]json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// KNNSearch retrieves the topK chunks nearest to vector by cosine similarity.
func (s *Store) KNNSearch(ctx context.Context, vector []float32, topK int) ([]domain.Passage, error) {
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			domain.ErrVectorDimMismatch, len(vector), s.cfg.VectorDim)
	}

	body, err := buildKNNQuery(s.cfg, vector, topK)
	if err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.cfg.Index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, s.cfg.Index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search: status %d", res.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return mapHits(s.cfg, parsed), nil
}

// mapHits converts raw hits into passages, lifting metadata.file_path for
// convenience.
func mapHits(cfg Config, resp searchResponse) []domain.Passage {
	passages := make([]domain.Passage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		p := domain.Passage{Score: hit.Score}

		if raw, ok := hit.Source[cfg.TextField]; ok {
			_ = json.Unmarshal(raw, &p.Text)
		}
		if raw, ok := hit.Source["metadata"]; ok {
			_ = json.Unmarshal(raw, &p.Metadata)
			p.FilePath = p.Metadata["file_path"]
		}

		passages = append(passages, p)
	}
	return passages
}
