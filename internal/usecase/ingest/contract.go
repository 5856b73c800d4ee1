package ingest

import (
	"context"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// CorpusLoader reads documents from the corpus directory.
type CorpusLoader interface {
	Load() ([]domain.Document, error)
}

// Chunker splits a document into retrieval units.
type Chunker interface {
	Chunk(doc domain.Document) []domain.Chunk
}

// Embedder vectorizes chunk batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// IndexWriter prepares the index and writes embedded chunks.
type IndexWriter interface {
	EnsureIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
}
