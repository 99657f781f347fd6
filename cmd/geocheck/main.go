// Command geocheck measures how well the intersection geocoder places a
// sample of feed locations, for calibrating GEOCODE_MATCH_THRESHOLD.
//
// The input CSV needs street and cross_streets columns (municipality is
// optional). Rows are grouped into phases by the shape of their location and
// the resolution rate of each phase is reported.
//
// Usage:
//
//	go run ./cmd/geocheck -in data/sample_locations.csv -threshold 80
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/dispatch-feed-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/geocode"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

// location is one sample row.
type location struct {
	line         int
	street       string
	crossStreets string
	municipality string
}

// phase tallies resolution for one location shape.
type phase struct {
	name       string
	total      int
	resolved   int
	unresolved []string
}

func (p *phase) rate() float64 {
	if p.total == 0 {
		return 0
	}
	return 100 * float64(p.resolved) / float64(p.total)
}

func main() {
	in := flag.String("in", "", "path to the sample location CSV")
	threshold := flag.Int("threshold", 0, "match threshold override (1-100); 0 uses GEOCODE_MATCH_THRESHOLD")
	verbose := flag.Bool("v", false, "list unresolved locations")
	flag.Parse()

	if *in == "" || *threshold < 0 || *threshold > 100 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *threshold > 0 {
		cfg.MatchThreshold = *threshold
	}
	logger := observability.NewLogger(cfg)

	if code := run(context.Background(), cfg, *in, *verbose, logger); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, verbose bool, logger *slog.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer f.Close()

	locations, err := readLocations(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", path, err)
		return 1
	}

	db, dialect, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.IndexDatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer db.Close()

	resolver := newResolver(cfg, sqlstore.NewIntersectionIndex(db, dialect), observability.NewMetrics(), logger)

	phases := check(ctx, resolver, locations)
	report(os.Stdout, cfg.MatchThreshold, phases, verbose)
	return 0
}

// newResolver builds an uncached resolver so every location hits the index.
func newResolver(cfg *config.Config, index geocode.Index, metrics *observability.Metrics, logger *slog.Logger) *geocode.Resolver {
	return geocode.NewResolver(index, nil, geocode.Options{
		MatchThreshold: cfg.MatchThreshold,
		CandidateLimit: cfg.CandidateLimit,
	}, metrics, logger)
}

func readLocations(r io.Reader) ([]location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"street", "cross_streets"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []location
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		out = append(out, location{
			line:         line,
			street:       field("street"),
			crossStreets: field("cross_streets"),
			municipality: field("municipality"),
		})
	}
}

// Phase names, in report order.
const (
	phaseStreetTwoCross = "street + two cross streets"
	phaseStreetOneCross = "street + one cross street"
	phaseCrossPair      = "cross-street pair"
	phaseUnplaceable    = "not placeable"
)

func classify(loc location) string {
	hasStreet := strings.TrimSpace(loc.street) != ""
	segments := len(geocode.SplitCrossStreets(loc.crossStreets))
	switch {
	case hasStreet && segments >= 2:
		return phaseStreetTwoCross
	case hasStreet && segments == 1:
		return phaseStreetOneCross
	case !hasStreet && segments >= 2:
		return phaseCrossPair
	default:
		return phaseUnplaceable
	}
}

func check(ctx context.Context, g domain.Geocoder, locations []location) []*phase {
	phases := []*phase{
		{name: phaseStreetTwoCross},
		{name: phaseStreetOneCross},
		{name: phaseCrossPair},
		{name: phaseUnplaceable},
	}
	byName := make(map[string]*phase, len(phases))
	for _, p := range phases {
		byName[p.name] = p
	}

	for _, loc := range locations {
		p := byName[classify(loc)]
		p.total++
		if _, ok := g.Geocode(ctx, loc.street, loc.crossStreets, loc.municipality); ok {
			p.resolved++
			continue
		}
		p.unresolved = append(p.unresolved,
			fmt.Sprintf("line %d: %q / %q", loc.line, loc.street, loc.crossStreets))
	}
	return phases
}

func report(w io.Writer, threshold int, phases []*phase, verbose bool) {
	fmt.Fprintf(w, "=== Geocode Check (threshold %d) ===\n\n", threshold)

	var total, resolved int
	for _, p := range phases {
		total += p.total
		resolved += p.resolved
		fmt.Fprintf(w, "  %-30s %5d / %-5d %6.1f%%\n", p.name, p.resolved, p.total, p.rate())
	}
	overall := &phase{total: total, resolved: resolved}
	fmt.Fprintf(w, "\n  %-30s %5d / %-5d %6.1f%%\n", "overall", resolved, total, overall.rate())

	if !verbose {
		return
	}
	for _, p := range phases {
		if len(p.unresolved) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, u := range p.unresolved {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, u)
		}
	}
}
