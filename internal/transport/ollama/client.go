// Package ollama is a minimal client for the Ollama HTTP API: generation,
// model listing and model pulls.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// GenerateOptions are the model runtime parameters sent with every request.
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	TopK        int      `json:"top_k"`
	TopP        float64  `json:"top_p"`
	NumCtx      int      `json:"num_ctx"`
	NumThread   int      `json:"num_thread"`
	Stop        []string `json:"stop,omitempty"`
}

// DefaultGenerateOptions returns the tuned options for the small chat models
// this stack runs on.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.5,
		TopK:        40,
		TopP:        0.9,
		NumCtx:      1024,
		NumThread:   4,
		Stop:        []string{"</s>", "Human:", "Assistant:", "[/INST]"},
	}
}

// Client talks to a single Ollama instance.
type Client struct {
	baseURL string
	opts    GenerateOptions
	http    *http.Client
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewClient creates an Ollama client with the default generation options.
// The base URL has no trailing slash.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		opts:    DefaultGenerateOptions(),
		http:    &http.Client{},
		retries: 3,
		backoff: time.Second,
		logger:  logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate runs a non-streaming completion for prompt against model.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.opts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, "/api/generate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", result.Error)
	}

	return result.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel reports whether model is present in the local model list.
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decode tags response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == model {
			return true, nil
		}
	}
	return false, nil
}

// Pull downloads model. Pulls can run for minutes on a cold volume; pass a
// context with a generous timeout.
func (c *Client) Pull(ctx context.Context, model string) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}

	c.logger.Info("Pulling model", zap.String("model", model))

	resp, err := c.doWithRetry(ctx, http.MethodPost, "/api/pull", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode pull response: %w", err)
	}
	if result.Error != "" {
		return fmt.Errorf("ollama pull: %s", result.Error)
	}

	c.logger.Info("Model pulled", zap.String("model", model), zap.String("status", result.Status))
	return nil
}

// HealthCheck verifies the instance answers /api/tags.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.doWithRetry(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	resp.Body.Close()
	return nil
}

// doWithRetry retries transport errors, 429 and 5xx responses with
// exponential backoff. Other 4xx responses fail immediately.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("Ollama request failed",
				zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.logger.Warn("Ollama server error",
				zap.String("path", path), zap.Int("attempt", attempt+1), zap.Int("status", resp.StatusCode))
			continue
		}

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w: ollama %s after %d attempts: %v",
		domain.ErrUpstreamUnavailable, path, c.retries+1, lastErr)
}
