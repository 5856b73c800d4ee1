package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

type mockLoader struct {
	docs []domain.Document
	err  error
}

func (m *mockLoader) Load() ([]domain.Document, error) { return m.docs, m.err }

type mockChunker struct {
	perDoc int
}

func (m *mockChunker) Chunk(doc domain.Document) []domain.Chunk {
	chunks := make([]domain.Chunk, m.perDoc)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("%s:%d", doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       doc.Content,
			Path:       doc.Path,
		}
	}
	return chunks
}

type mockBatchEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts) * 5}, nil
}

type mockWriter struct {
	mu         sync.Mutex
	ensured    bool
	ensureErr  error
	bulkErr    error
	indexed    int
	batchSizes []int
}

func (m *mockWriter) EnsureIndex(_ context.Context) error {
	m.ensured = true
	return m.ensureErr
}

func (m *mockWriter) BulkIndex(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bulkErr != nil {
		return m.bulkErr
	}
	if len(chunks) != len(vectors) {
		return errors.New("length mismatch")
	}
	m.indexed += len(chunks)
	m.batchSizes = append(m.batchSizes, len(chunks))
	return nil
}

func testDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:      fmt.Sprintf("doc%d", i),
			Path:    fmt.Sprintf("/corpus/doc%d.pdf", i),
			Content: strings.Repeat("มาตรา ", 10),
		}
	}
	return docs
}

func TestRun(t *testing.T) {
	loader := &mockLoader{docs: testDocs(3)}
	embedder := &mockBatchEmbedder{}
	writer := &mockWriter{}
	svc := New(loader, &mockChunker{perDoc: 4}, embedder, writer, 2, 5, nil, zap.NewNop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !writer.ensured {
		t.Error("expected EnsureIndex to be called")
	}
	if result.Documents != 3 {
		t.Errorf("expected 3 documents, got %d", result.Documents)
	}
	if result.Chunks != 12 {
		t.Errorf("expected 12 chunks, got %d", result.Chunks)
	}
	if result.Processed != 12 {
		t.Errorf("expected 12 processed, got %d", result.Processed)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", result.Failed)
	}
	if writer.indexed != 12 {
		t.Errorf("expected 12 indexed, got %d", writer.indexed)
	}
	for _, size := range writer.batchSizes {
		if size > 5 {
			t.Errorf("batch size %d exceeds limit 5", size)
		}
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	svc := New(&mockLoader{}, &mockChunker{perDoc: 4}, &mockBatchEmbedder{}, &mockWriter{}, 2, 5, nil, zap.NewNop())

	// A corpus with nothing to index means the bind mount is wrong or the
	// directory is empty. That must fail the run, not report success.
	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestRun_EnsureIndexError(t *testing.T) {
	writer := &mockWriter{ensureErr: errors.New("cluster red")}
	svc := New(&mockLoader{docs: testDocs(1)}, &mockChunker{perDoc: 1}, &mockBatchEmbedder{}, writer, 1, 5, nil, zap.NewNop())

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error from EnsureIndex")
	}
}

func TestRun_LoaderError(t *testing.T) {
	loader := &mockLoader{err: errors.New("permission denied")}
	svc := New(loader, &mockChunker{perDoc: 1}, &mockBatchEmbedder{}, &mockWriter{}, 1, 5, nil, zap.NewNop())

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error from loader")
	}
}

func TestRun_EmbedErrorsCounted(t *testing.T) {
	loader := &mockLoader{docs: testDocs(2)}
	embedder := &mockBatchEmbedder{err: errors.New("provider down")}
	svc := New(loader, &mockChunker{perDoc: 3}, embedder, &mockWriter{}, 2, 2, nil, zap.NewNop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 6 {
		t.Errorf("expected 6 failed, got %d", result.Failed)
	}
	if result.Processed != 0 {
		t.Errorf("expected 0 processed, got %d", result.Processed)
	}
}

func TestRun_BulkErrorsCounted(t *testing.T) {
	loader := &mockLoader{docs: testDocs(1)}
	writer := &mockWriter{bulkErr: errors.New("bulk rejected")}
	svc := New(loader, &mockChunker{perDoc: 4}, &mockBatchEmbedder{}, writer, 1, 10, nil, zap.NewNop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 4 {
		t.Errorf("expected 4 failed, got %d", result.Failed)
	}
}
