package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(url string, attempts int) *Fetcher {
	return NewFetcher(FetcherConfig{
		URL:        url,
		UserAgent:  "dispatch-feed-etl-test",
		Timeout:    time.Second,
		Attempts:   attempts,
		RetryDelay: time.Millisecond,
	}, observability.NewMetricsForTesting(), discardLogger())
}

func TestFetcher_Success(t *testing.T) {
	var userAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		_, _ = w.Write([]byte("<table></table>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(srv.URL, 3).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "<table></table>", string(body))
	assert.Equal(t, "dispatch-feed-etl-test", userAgent.Load())
}

func TestFetcher_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(srv.URL, 3).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL, 2).Fetch(context.Background())

	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{URL: srv.URL, Timeout: 20 * time.Millisecond, Attempts: 1},
		observability.NewMetricsForTesting(), discardLogger())

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetcher_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{URL: srv.URL, Timeout: time.Second, Attempts: 5, RetryDelay: time.Hour},
		observability.NewMetricsForTesting(), discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx)

	require.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewFetcher_MinimumOneAttempt(t *testing.T) {
	f := newTestFetcher("http://127.0.0.1", 0)
	assert.Equal(t, 1, f.cfg.Attempts)
}
