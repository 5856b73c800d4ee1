// Package ingest runs the corpus pipeline: read documents, chunk, embed in
// batches through a worker pool, bulk index.
package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// ErrEmptyCorpus is returned when the corpus directory yields no documents.
// The ingester exits non-zero on it so the supervisor retries the pass.
var ErrEmptyCorpus = errors.New("ingest: no documents in corpus")

// Service coordinates the ingestion pipeline.
type Service struct {
	loader    CorpusLoader
	chunker   Chunker
	embedder  Embedder
	writer    IndexWriter
	workers   int
	batchSize int
	metrics   *Metrics
	logger    *zap.Logger
}

// New creates an ingestion service. metrics can be nil.
func New(
	loader CorpusLoader,
	chunker Chunker,
	embedder Embedder,
	writer IndexWriter,
	workers, batchSize int,
	metrics *Metrics,
	logger *zap.Logger,
) *Service {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Service{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		writer:    writer,
		workers:   workers,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// Result holds ingestion totals.
type Result struct {
	Documents int
	Chunks    int
	Processed int64
	Failed    int64
	Duration  time.Duration
}

// Run executes the pipeline: producer → N workers → bulk index. A failed
// batch is counted and logged but does not stop the run.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	if err := s.writer.EnsureIndex(ctx); err != nil {
		return Result{}, err
	}

	docs, err := s.loader.Load()
	if err != nil {
		return Result{}, err
	}
	if len(docs) == 0 {
		return Result{}, ErrEmptyCorpus
	}
	if s.metrics != nil {
		s.metrics.DocumentsTotal.Add(float64(len(docs)))
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.chunker.Chunk(doc)...)
	}

	s.logger.Info("Corpus loaded",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
	)

	batches := make(chan []domain.Chunk, s.workers*2)
	var wg sync.WaitGroup
	var processed, failed atomic.Int64

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for batch := range batches {
				s.processBatch(ctx, workerID, batch, &processed, &failed)
			}
		}(i)
	}

	go func() {
		defer close(batches)
		for i := 0; i < len(chunks); i += s.batchSize {
			select {
			case <-ctx.Done():
				return
			default:
			}
			end := i + s.batchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			batches <- chunks[i:end]
		}
	}()

	wg.Wait()

	result := Result{
		Documents: len(docs),
		Chunks:    len(chunks),
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}

	s.logger.Info("Ingestion finished",
		zap.Int64("processed", result.Processed),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)

	return result, ctx.Err()
}

func (s *Service) processBatch(
	ctx context.Context,
	workerID int,
	batch []domain.Chunk,
	processed, failed *atomic.Int64,
) {
	start := time.Now()

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	emb, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		s.logger.Error("Batch embed failed",
			zap.Int("worker", workerID), zap.Int("size", len(batch)), zap.Error(err))
		failed.Add(int64(len(batch)))
		s.incFailed("embed_error", len(batch))
		return
	}

	if err := s.writer.BulkIndex(ctx, batch, emb.Embeddings); err != nil {
		s.logger.Error("Bulk index failed",
			zap.Int("worker", workerID), zap.Int("size", len(batch)), zap.Error(err))
		failed.Add(int64(len(batch)))
		s.incFailed("index_error", len(batch))
		return
	}

	processed.Add(int64(len(batch)))

	if s.metrics != nil {
		s.metrics.ChunksProcessed.Add(float64(len(batch)))
		s.metrics.BatchesTotal.Inc()
		s.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		s.metrics.TokensTotal.Add(float64(emb.TotalTokens))
	}
}

func (s *Service) incFailed(reason string, n int) {
	if s.metrics != nil {
		s.metrics.ChunksFailed.WithLabelValues(reason).Add(float64(n))
	}
}
