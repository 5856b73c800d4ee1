package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/config"
	"github.com/thaidata-cloud/lexrag/internal/domain"
	logpkg "github.com/thaidata-cloud/lexrag/internal/logger"
	ollamaTransport "github.com/thaidata-cloud/lexrag/internal/transport/ollama"
	"github.com/thaidata-cloud/lexrag/internal/transport/web"
	chatuc "github.com/thaidata-cloud/lexrag/internal/usecase/chat"
	"github.com/thaidata-cloud/lexrag/internal/version"
	sdk "github.com/thaidata-cloud/lexrag/pkg/sdk"
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

	logger.Info("Starting chat application",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.App.Port),
		zap.String("api_url", cfg.App.APIURL),
		zap.String("ollama_url", cfg.App.OllamaURL),
		zap.String("model", cfg.App.Model),
	)

	apiClient := sdk.New(cfg.App.APIURL,
		sdk.WithTimeout(time.Duration(cfg.App.SearchTimeoutSec)*time.Second))
	generator := ollamaTransport.NewClient(cfg.App.OllamaURL, logger)

	chatSvc := chatuc.New(
		&apiRetriever{client: apiClient},
		generator,
		cfg.App.Model,
		cfg.App.SystemPrompt,
		cfg.App.ContextPassages,
		logger,
	)

	// Pull the model in the background so the first analysis does not pay
	// the download. Analysis pulls again on demand if this fails.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.App.PullTimeoutSec)*time.Second)
		defer cancel()
		if err := chatSvc.EnsureModel(ctx); err != nil {
			logger.Warn("Model warm-up failed", zap.Error(err))
			return
		}
		logger.Info("Model ready", zap.String("model", cfg.App.Model))
	}()

	server := web.NewServer(chatSvc, &apiHealth{client: apiClient}, logger)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.App.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.App.WriteTimeoutSec) * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// apiRetriever adapts the API client to the chat retriever contract.
type apiRetriever struct {
	client *sdk.Client
}

func (r *apiRetriever) Search(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	results, err := r.client.Search(ctx, query, topK)
	if err != nil {
		if errors.Is(err, sdk.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
		// The API's structured 4xx codes map back onto the domain sentinels
		// so the web layer answers with its own messages.
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "empty_query" {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmptyQuery, apiErr.Message)
		}
		return nil, err
	}

	passages := make([]domain.Passage, 0, len(results))
	for _, p := range results {
		passages = append(passages, domain.Passage{
			Text:     p.Text,
			Metadata: p.Metadata,
			Score:    p.Score,
			FilePath: p.FilePath,
		})
	}
	return passages, nil
}

// apiHealth adapts the API client to the web server's upstream check.
type apiHealth struct {
	client *sdk.Client
}

func (h *apiHealth) HealthCheck(ctx context.Context) error {
	report, err := h.client.Health(ctx)
	if err != nil {
		return err
	}
	if report.Status != "ok" {
		return fmt.Errorf("api reports %q", report.Status)
	}
	return nil
}
