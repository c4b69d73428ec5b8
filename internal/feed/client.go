// Package feed downloads remote GeoJSON feature collections.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/observability"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

var (
	// ErrStatus is matched by every non-200 response.
	ErrStatus = errors.New("unexpected feed status")
	// ErrDecode is returned when the body is not a GeoJSON document.
	ErrDecode = errors.New("malformed feed")
)

// StatusError carries the HTTP status of a failed fetch.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Code)
}

// Is makes errors.Is(err, ErrStatus) hold.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Client fetches GeoJSON feeds with a bounded retry.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	userAgent  string
	delay      time.Duration
	attempts   uint
}

// NewClient creates a feed client from the feeds configuration.
func NewClient(cfg config.Feeds, metrics *observability.Metrics) *Client {
	// Retries counts extra attempts after the first one.
	attempts := uint(1)
	if cfg.Retries > 0 {
		attempts += uint(cfg.Retries)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    metrics,
		userAgent:  cfg.UserAgent,
		delay:      cfg.RetryDelay,
		attempts:   attempts,
	}
}

// Fetch downloads and decodes the feature collection at url. The name labels
// logs and metrics.
func (c *Client) Fetch(ctx context.Context, name, url string) (*geo.GeoJSONFeatureCollection, error) {
	start := time.Now()

	var fc *geo.GeoJSONFeatureCollection
	err := retry.Do(
		func() error {
			var err error
			fc, err = c.fetchOnce(ctx, url)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Err(err).
				Str("feed", name).
				Uint("attempt", n+1).
				Uint("attempts", c.attempts).
				Msg("Feed fetch failed, retrying")
		}),
	)

	if c.metrics != nil {
		c.metrics.FeedDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.observe(name, "error")
		return nil, fmt.Errorf("fetch %s feed: %w", name, err)
	}

	c.observe(name, "success")
	if c.metrics != nil {
		c.metrics.FeedFeatures.WithLabelValues(name).Set(float64(len(fc.Features)))
	}

	log.Debug().
		Str("feed", name).
		Int("features", len(fc.Features)).
		Dur("duration", time.Since(start)).
		Msg("Feed fetched")

	return fc, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*geo.GeoJSONFeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	var fc geo.GeoJSONFeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &fc, nil
}

// retryable allows retries for transport errors, 5xx and 429 only.
func retryable(err error) bool {
	if !retry.IsRecoverable(err) || errors.Is(err, ErrDecode) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	return true
}

func (c *Client) observe(name, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.FeedRequests.WithLabelValues(name, outcome).Inc()
}
