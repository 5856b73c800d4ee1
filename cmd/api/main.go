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
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/config"
	dbRedis "github.com/thaidata-cloud/lexrag/internal/db/redis"
	"github.com/thaidata-cloud/lexrag/internal/domain"
	"github.com/thaidata-cloud/lexrag/internal/index/opensearch"
	logpkg "github.com/thaidata-cloud/lexrag/internal/logger"
	"github.com/thaidata-cloud/lexrag/internal/metrics"
	"github.com/thaidata-cloud/lexrag/internal/repository/embcache"
	chiTransport "github.com/thaidata-cloud/lexrag/internal/transport/chi"
	openaiEmb "github.com/thaidata-cloud/lexrag/internal/transport/openai"
	healthuc "github.com/thaidata-cloud/lexrag/internal/usecase/health"
	searchuc "github.com/thaidata-cloud/lexrag/internal/usecase/search"
	"github.com/thaidata-cloud/lexrag/internal/version"
)

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

	logger.Info("Starting retrieval API",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.API.Port),
		zap.String("opensearch_endpoint", cfg.OpenSearch.Endpoint),
		zap.String("opensearch_index", cfg.OpenSearch.Index),
	)

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

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.OpenSearch.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index store not ready", zap.Error(err))
	}
	logger.Info("Connected to index store")

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	// Optional Redis query-embedding cache
	var embedder domain.Embedder = base
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

	searchSvc := searchuc.New(store, embedder, cfg.Search.TopK, cfg.Search.MaxTopK)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(base))

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.API.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.API.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.API.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
