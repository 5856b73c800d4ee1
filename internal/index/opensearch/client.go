// Package opensearch implements the index store over the OpenSearch HTTP API:
// index lifecycle, bulk ingestion and kNN retrieval.
package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Config holds index store settings.
type Config struct {
	Endpoint       string
	Index          string
	VectorDim      int
	TextField      string
	EmbeddingField string
}

// Store wraps an OpenSearch client for a single kNN-enabled index.
type Store struct {
	client *opensearchgo.Client
	cfg    Config
	logger *zap.Logger
}

// NewStore creates an index store client. It does not touch the network;
// call WaitForReady before first use.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("opensearch endpoint is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("opensearch index is required")
	}

	client, err := opensearchgo.NewClient(opensearchgo.Config{
		Addresses: []string{cfg.Endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &Store{client: client, cfg: cfg, logger: logger}, nil
}

// Ping checks endpoint availability.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: status %d", res.StatusCode)
	}
	return nil
}

// WaitForReady polls the endpoint until it answers or the timeout expires.
// The index store can take minutes to come up after a cold stack start.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if err := s.Ping(ctx); err == nil {
		return nil
	}
	s.logger.Info("Waiting for index store", zap.String("endpoint", s.cfg.Endpoint))

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for index store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
			s.logger.Info("Waiting for index store", zap.String("endpoint", s.cfg.Endpoint))
		}
	}
}

// IndexExists reports whether the configured index exists.
func (s *Store) IndexExists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{s.cfg.Index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("index exists: status %d", res.StatusCode)
	}
}

// ClusterHealth returns the cluster status string (green/yellow/red).
func (s *Store) ClusterHealth(ctx context.Context) (string, error) {
	res, err := s.client.Cluster.Health(s.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("cluster health: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("cluster health: status %d", res.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode cluster health: %w", err)
	}
	return body.Status, nil
}

// HealthCheck implements the health contract: the store is healthy when the
// endpoint answers and the cluster is not red.
func (s *Store) HealthCheck(ctx context.Context) error {
	status, err := s.ClusterHealth(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if status == "red" {
		return fmt.Errorf("%w: cluster status red", domain.ErrUpstreamUnavailable)
	}
	return nil
}

// Index returns the configured index name.
func (s *Store) Index() string { return s.cfg.Index }
