package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/chunker"
	"github.com/thaidata-cloud/lexrag/internal/config"
	"github.com/thaidata-cloud/lexrag/internal/corpus"
	dbRedis "github.com/thaidata-cloud/lexrag/internal/db/redis"
	"github.com/thaidata-cloud/lexrag/internal/index/opensearch"
	logpkg "github.com/thaidata-cloud/lexrag/internal/logger"
	"github.com/thaidata-cloud/lexrag/internal/metrics"
	"github.com/thaidata-cloud/lexrag/internal/repository/embcache"
	openaiEmb "github.com/thaidata-cloud/lexrag/internal/transport/openai"
	ingestuc "github.com/thaidata-cloud/lexrag/internal/usecase/ingest"
	"github.com/thaidata-cloud/lexrag/internal/version"
)

// The ingester runs one pass over the corpus and exits. A non-zero exit
// tells the supervisor to restart it; a clean exit means the index is built.
func main() {
	_ = godotenv.Load()
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting corpus ingester",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("corpus_dir", cfg.Ingest.CorpusDir),
		zap.String("opensearch_endpoint", cfg.OpenSearch.Endpoint),
		zap.String("opensearch_index", cfg.OpenSearch.Index),
		zap.Int("workers", cfg.Ingest.Workers),
		zap.Int("batch_size", cfg.Ingest.BatchSize),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := opensearch.NewStore(opensearch.Config{
		Endpoint:       cfg.OpenSearch.Endpoint,
		Index:          cfg.OpenSearch.Index,
		VectorDim:      cfg.OpenSearch.VectorDim,
		TextField:      cfg.OpenSearch.TextField,
		EmbeddingField: cfg.OpenSearch.EmbeddingField,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.OpenSearch.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index store not ready", zap.Error(err))
	}
	logger.Info("Connected to index store")

	metrics.RegisterEmbeddingMetrics()

	// Ingest metrics live on their own registry so a run exposes only its
	// own counters.
	reg := prometheus.NewRegistry()
	ingestMetrics := ingestuc.NewMetrics(reg)

	if cfg.Ingest.MetricsPort > 0 {
		go serveMetrics(cfg.Ingest.MetricsPort, reg, logger)
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder ingestuc.Embedder = base
	if len(cfg.Cache.Addrs) > 0 {
		cache, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer cache.Close()

		embedder = embcache.New(base, cache,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger)
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	loader := corpus.NewReader(cfg.Ingest.CorpusDir, logger)
	tok := chunker.NewTokenChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	svc := ingestuc.New(loader, tok, embedder, store,
		cfg.Ingest.Workers, cfg.Ingest.BatchSize, ingestMetrics, logger)

	result, err := svc.Run(ctx)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("Ingestion complete",
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.Int64("processed", result.Processed),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	if result.Failed > 0 {
		_ = logger.Sync()
		os.Exit(1)
	}
}

func serveMetrics(port int, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Serving ingester metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}
