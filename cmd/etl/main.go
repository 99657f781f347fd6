package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/dispatch-feed-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/dispatch-feed-etl/internal/adapter/kafka"
	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/geocode"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
	"github.com/couchcryptid/dispatch-feed-etl/internal/pipeline"
	"github.com/couchcryptid/dispatch-feed-etl/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, dialect, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	indexDB := db
	if cfg.IndexDatabaseURL != cfg.DatabaseURL {
		indexDB, err = openIndexDB(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to open intersection index", "error", err)
			os.Exit(1)
		}
		defer indexDB.Close()
	}

	store := sqlstore.New(db, dialect)
	index := sqlstore.NewIntersectionIndex(indexDB, dialect)
	if n, err := index.Count(ctx); err != nil {
		logger.Warn("intersection index unavailable", "error", err)
	} else {
		logger.Info("intersection index loaded", "intersections", n)
	}

	cache, err := geocode.NewCache(cfg.GeocodeCacheSize)
	if err != nil {
		logger.Error("failed to create geocode cache", "error", err)
		os.Exit(1)
	}
	var geocoder domain.Geocoder = geocode.NewResolver(index, cache, geocode.Options{
		MatchThreshold: cfg.MatchThreshold,
		CandidateLimit: cfg.CandidateLimit,
	}, metrics, logger)

	// Mapbox fallback is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder, err = mapbox.NewFallbackGeocoder(geocoder, client, mapbox.FallbackConfig{
			Region:       cfg.GeocodeRegion,
			MinRelevance: cfg.MapboxMinRelevance,
			CacheSize:    cfg.GeocodeCacheSize,
		}, metrics, logger)
		if err != nil {
			logger.Error("failed to create fallback geocoder", "error", err)
			os.Exit(1)
		}
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox fallback geocoding enabled", "timeout", cfg.MapboxTimeout, "min_relevance", cfg.MapboxMinRelevance)
	} else {
		logger.Info("mapbox fallback geocoding disabled")
	}

	var publisher pipeline.ChangePublisher
	if cfg.ChangeFeedEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("change feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	fetcher := feed.NewFetcher(feed.FetcherConfig{
		URL:        cfg.FeedURL,
		UserAgent:  cfg.FeedUserAgent,
		Timeout:    cfg.FetchTimeout,
		Attempts:   cfg.FetchAttempts,
		RetryDelay: cfg.FetchRetryDelay,
	}, metrics, logger)
	reconciler := reconcile.New(store, geocoder, cfg.ReinsertAfter, logger)
	p := pipeline.New(fetcher, reconciler, publisher, cfg.PollInterval, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, logger, p, store, index)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

// openIndexDB connects to a separate intersection index database. It shares
// the incident store's driver and carries the same schema.
func openIndexDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, dialect, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.IndexDatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db, dialect, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
