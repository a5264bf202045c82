// Package skillboost talks to the external endpoints SkillPath depends on:
// the Google Cloud Skills Boost catalog API and the learning-path generator.
package skillboost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/skillpath/internal/metrics"
	"github.com/HerbHall/skillpath/internal/version"
)

// Endpoint names used in errors, logs and metrics.
const (
	EndpointAuth    = "authenticate"
	EndpointCatalog = "catalog"
	EndpointPath    = "learning_path"
)

// Config holds upstream endpoint settings.
type Config struct {
	BaseURL       string        `mapstructure:"base_url"`
	CatalogID     string        `mapstructure:"catalog_id"`
	PerPage       int           `mapstructure:"per_page"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	PathURL       string        `mapstructure:"path_url"`
	PathTopic     string        `mapstructure:"path_topic"`
	PathLevel     string        `mapstructure:"path_level"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// DefaultConfig returns the production endpoint configuration. Credentials
// are empty and must come from the environment or config file.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://www.cloudskillsboost.google",
		CatalogID:     "gcp-self-paced-labs-all-public",
		PerPage:       900,
		PathURL:       "https://us-central1-learnahoy.cloudfunctions.net/generateLearningPath",
		PathTopic:     "learning cloud technology",
		PathLevel:     "beginner",
		Timeout:       30 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
	}
}

// Client calls the upstream endpoints. Requests share one rate limiter and
// are never retried.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		metrics: m,
	}
}

// do sends req and decodes a JSON response body into out.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		c.metrics.Upstream(endpoint, metrics.OutcomeCancelled)
		return mapError(endpoint, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Upstream(endpoint, metrics.OutcomeError)
		return mapError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		c.metrics.Upstream(endpoint, metrics.OutcomeError)
		return mapError(endpoint, err)
	}

	c.logger.Debug("upstream response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Upstream(endpoint, metrics.OutcomeError)
		return mapError(endpoint, &statusError{StatusCode: resp.StatusCode, Message: statusMessage(resp.Status, body)})
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.Upstream(endpoint, metrics.OutcomeError)
		return invalidResponse(endpoint, fmt.Errorf("decode response: %w", err))
	}

	c.metrics.Upstream(endpoint, metrics.OutcomeOK)
	return nil
}

func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// statusMessage keeps error messages short; upstream error pages can be HTML.
func statusMessage(status string, body []byte) string {
	const maxLen = 200
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		return status
	}
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
