// Command buildindex loads the intersection index used by the geocoder.
//
// It reads junction incidences exported from OpenStreetMap as CSV
// (node_id,lat,lon,street_name), pairs up the streets meeting at each node,
// and replaces the contents of the osm_intersections table.
//
// Usage:
//
//	go run ./cmd/buildindex -in data/caddo_junctions.csv
//
// The target database is taken from DB_DRIVER and INDEX_DATABASE_URL
// (falling back to DATABASE_URL), as for the service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/index"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

func main() {
	in := flag.String("in", "", "path to the junction incidence CSV")
	dryRun := flag.Bool("dry-run", false, "build pairs and report counts without writing")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	if err := run(context.Background(), cfg, *in, *dryRun, logger); err != nil {
		logger.Error("build index failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, dryRun bool, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	incidences, err := index.ReadIncidences(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	rows := index.BuildPairs(incidences)
	logger.Info("intersection pairs built", "incidences", len(incidences), "pairs", len(rows))

	if dryRun {
		return nil
	}

	db, dialect, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.IndexDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, dialect, logger); err != nil {
		return err
	}

	idx := sqlstore.NewIntersectionIndex(db, dialect)
	if err := idx.Replace(ctx, rows); err != nil {
		return err
	}
	n, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("intersection index replaced", "rows", n)
	return nil
}
