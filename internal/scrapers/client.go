// Package scrapers fetches product listings and offers from grocery store websites.
package scrapers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRetryAfter = 60 * time.Second
	maxErrorBody      = 500
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// HTTPError is returned for responses with status >= 400
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// RateLimitError is returned on 429 responses
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.URL, e.RetryAfter)
}

// Client is a paced HTTP client with retries on transport failures.
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// ClientOption customizes a Client
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.httpClient = hc } }

// WithBackOff replaces the retry schedule, mostly for tests.
func WithBackOff(f func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = f }
}

// NewClient builds a client paced by cfg.RateLimit. A zero rate limit disables pacing.
func NewClient(name string, cfg config.ScrapingConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(cfg.MaxRetries, 1),
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and returns the body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "da-DK,da;q=0.9,en;q=0.8")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := defaultRetryAfter
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				wait = time.Duration(secs) * time.Second
			}
			return backoff.Permanent(&RateLimitError{URL: url, RetryAfter: wait})
		}
		if resp.StatusCode >= 400 {
			detail := string(data)
			if len(detail) > maxErrorBody {
				detail = detail[:maxErrorBody]
			}
			c.logger.Error("scraper request error",
				zap.String("url", url), zap.Int("status", resp.StatusCode), zap.String("detail", detail))
			return backoff.Permanent(&HTTPError{URL: url, StatusCode: resp.StatusCode, Body: detail})
		}
		body = data
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		metrics.ScraperRequests.WithLabelValues(c.name, "error").Inc()
		var httpErr *HTTPError
		var rateErr *RateLimitError
		if errors.As(err, &httpErr) || errors.As(err, &rateErr) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Error("request failed after retries",
			zap.String("url", url), zap.Int("attempts", c.maxRetries), zap.Error(err))
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
	}
	metrics.ScraperRequests.WithLabelValues(c.name, "ok").Inc()
	return body, nil
}

// HealthCheck reports whether url answers with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context, url string) bool {
	if _, err := c.Get(ctx, url); err != nil {
		c.logger.Warn("health check failed", zap.String("scraper", c.name), zap.Error(err))
		return false
	}
	return true
}
