package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics covers ingestion progress. The ingester is a separate binary, so
// the metrics live on its own registry instead of the default one.
type Metrics struct {
	DocumentsTotal  prometheus.Counter
	ChunksProcessed prometheus.Counter
	ChunksFailed    *prometheus.CounterVec
	BatchesTotal    prometheus.Counter
	BatchDuration   prometheus.Histogram
	TokensTotal     prometheus.Counter
}

// NewMetrics creates and registers ingestion metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lexrag_ingester",
			Name:      "documents_total",
			Help:      "Total corpus documents read",
		}),
		ChunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lexrag_ingester",
			Name:      "chunks_processed_total",
			Help:      "Total chunks embedded and indexed",
		}),
		ChunksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexrag_ingester",
			Name:      "chunks_failed_total",
			Help:      "Total chunks failed",
		}, []string{"reason"}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lexrag_ingester",
			Name:      "batches_total",
			Help:      "Total batches sent to the index",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lexrag_ingester",
			Name:      "batch_duration_seconds",
			Help:      "Embed plus bulk index duration per batch",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lexrag_ingester",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed during ingestion",
		}),
	}

	reg.MustRegister(
		m.DocumentsTotal, m.ChunksProcessed, m.ChunksFailed,
		m.BatchesTotal, m.BatchDuration, m.TokensTotal,
	)

	return m
}
