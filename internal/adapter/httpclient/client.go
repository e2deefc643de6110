// Package httpclient performs GET requests against upstream data services with
// retries, exponential backoff and a circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// defaultMaxBodyBytes bounds a single response; a full year of hourly station data is a few MB.
const defaultMaxBodyBytes = 64 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errBodyTooLarge = errors.New("response body too large")
)

// statusError is a non-retryable HTTP status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// Config controls timeouts and retry behaviour.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxBodyBytes    int64 // zero means 64 MiB
}

// DefaultConfig returns a Config with a 30s timeout and three retries.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Client fetches response bodies from one upstream service.
type Client struct {
	name    string
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a client whose breaker and metrics are labelled with name.
func New(name string, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		name: name,
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
			},
		}),
		logger:  logger,
		metrics: metrics,
	}
}

// Get fetches url and returns the body of a 2xx response. Network failures,
// 429 and 5xx responses are retried; other statuses fail immediately. Every
// failure wraps domain.ErrSourceUnavailable.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	backoff := c.cfg.InitialInterval
	for attempt := 0; ; attempt++ {
		body, err := c.attempt(ctx, url)
		if err == nil {
			c.metrics.SourceRequests.WithLabelValues(c.name, "success").Inc()
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *statusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.SourceRequests.WithLabelValues(c.name, "open").Inc()
			return nil, fmt.Errorf("%w: %s circuit open: %w", domain.ErrSourceUnavailable, c.name, err)
		case errors.As(err, &se), errors.Is(err, errBodyTooLarge):
			c.metrics.SourceRequests.WithLabelValues(c.name, "error").Inc()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, c.name, err)
		}

		c.metrics.SourceRequests.WithLabelValues(c.name, "error").Inc()
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrSourceUnavailable, c.name, attempt+1, err)
		}
		c.logger.Warn("source request failed, retrying",
			"source", c.name, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = min(backoff*2, c.cfg.MaxInterval)
	}
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.metrics.SourceDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &statusError{code: resp.StatusCode, body: string(snippet)}
		}
		return readBody(resp.Body, c.maxBodyBytes())
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) maxBodyBytes() int64 {
	if c.cfg.MaxBodyBytes > 0 {
		return c.cfg.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

// readBody reads at most limit bytes and fails rather than returning a
// truncated body.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, limit)
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
