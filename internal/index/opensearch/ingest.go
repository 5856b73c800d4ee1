package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// bulkAction is the action line preceding each document in a _bulk body.
type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id,omitempty"`
	} `json:"index"`
}

// BulkIndex writes chunks with their embeddings into the index in a single
// _bulk request. len(chunks) must equal len(vectors); every vector must
// match the configured dimension.
func (s *Store) BulkIndex(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	body, err := buildBulkBody(s.cfg, chunks, vectors)
	if err != nil {
		return err
	}

	res, err := s.client.Bulk(bytes.NewReader(body), s.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index: status %d", res.StatusCode)
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("bulk index item failed: %s: %s", op.Error.Type, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported item errors")
	}

	return nil
}

// buildBulkBody renders the newline-delimited _bulk payload.
func buildBulkBody(cfg Config, chunks []domain.Chunk, vectors [][]float32) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i, chunk := range chunks {
		if cfg.VectorDim > 0 && len(vectors[i]) != cfg.VectorDim {
			return nil, fmt.Errorf("%w: chunk %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, chunk.ID, len(vectors[i]), cfg.VectorDim)
		}

		var action bulkAction
		action.Index.Index = cfg.Index
		action.Index.ID = chunk.ID
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}

		doc := map[string]any{
			cfg.TextField:      chunk.Text,
			cfg.EmbeddingField: vectors[i],
			"metadata": map[string]string{
				"file_path":   chunk.Path,
				"document_id": chunk.DocumentID,
				"chunk_index": strconv.Itoa(chunk.Index),
			},
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode bulk document: %w", err)
		}
	}

	return buf.Bytes(), nil
}
