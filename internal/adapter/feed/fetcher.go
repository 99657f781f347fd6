// Package feed fetches and parses the dispatch feed's active-calls page.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/gocolly/colly/v2"

	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

// ErrFetch is returned when every fetch attempt failed.
var ErrFetch = errors.New("feed fetch failed")

// FetcherConfig controls how the feed page is retrieved.
type FetcherConfig struct {
	URL        string
	UserAgent  string
	Timeout    time.Duration // per attempt
	Attempts   int
	RetryDelay time.Duration // fixed wait between attempts
}

// Fetcher downloads the feed page with colly, retrying a fixed number of
// times with a fixed delay.
type Fetcher struct {
	cfg     FetcherConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. Attempts below 1 are raised to 1.
func NewFetcher(cfg FetcherConfig, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Fetcher{cfg: cfg, metrics: metrics, logger: logger}
}

// Fetch returns the raw page body. After the last failed attempt it returns
// an error wrapping ErrFetch. It stops early when ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		body, err := f.fetchOnce()
		if err == nil {
			f.metrics.FetchAttempts.WithLabelValues("success").Inc()
			return body, nil
		}

		lastErr = err
		f.metrics.FetchAttempts.WithLabelValues("error").Inc()
		f.logger.Warn("feed fetch attempt failed",
			"url", f.cfg.URL,
			"attempt", attempt,
			"max_attempts", f.cfg.Attempts,
			"error", err,
		)

		if attempt == f.cfg.Attempts {
			break
		}
		if !retry.SleepWithContext(ctx, f.cfg.RetryDelay) {
			return nil, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetch, f.cfg.Attempts, lastErr)
}

// fetchOnce performs a single request. A fresh collector per attempt keeps
// colly from refusing a revisit of the same URL.
func (f *Fetcher) fetchOnce() ([]byte, error) {
	c := colly.NewCollector(colly.AllowURLRevisit())
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	if f.cfg.Timeout > 0 {
		c.SetRequestTimeout(f.cfg.Timeout)
	}

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(f.cfg.URL); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("empty response")
	}
	return body, nil
}
