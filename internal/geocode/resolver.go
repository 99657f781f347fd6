package geocode

import (
	"cmp"
	"context"
	"log/slog"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMatchThreshold = 75
	DefaultCandidateLimit = 200
)

// Index searches the intersection index for rows where either street name
// contains the anchor, case-insensitively, in a deterministic order.
type Index interface {
	Candidates(ctx context.Context, anchor string, limit int) ([]domain.IntersectionCandidate, error)
}

// Options tunes the resolver.
type Options struct {
	MatchThreshold int
	CandidateLimit int
	Similarity     SimilarityFunc
}

// Resolver implements domain.Geocoder against an intersection index.
type Resolver struct {
	index     Index
	cache     *Cache
	threshold int
	limit     int
	sim       SimilarityFunc
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(index Index, cache *Cache, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	r := &Resolver{
		index:     index,
		cache:     cache,
		threshold: opts.MatchThreshold,
		limit:     opts.CandidateLimit,
		sim:       opts.Similarity,
		metrics:   metrics,
		logger:    logger,
	}
	if r.threshold <= 0 {
		r.threshold = DefaultMatchThreshold
	}
	if r.limit <= 0 {
		r.limit = DefaultCandidateLimit
	}
	if r.sim == nil {
		r.sim = TokenSetRatio
	}
	return r
}

// Geocode combines the street with its cross-street segments:
//   - street and two or more segments: resolve against the first two and
//     take the midpoint when both match, or whichever one matched;
//   - street and one segment: resolve that pair;
//   - no street and two or more segments: resolve the segment pair.
//
// Anything else is unresolved. Municipality is not used by the index.
func (r *Resolver) Geocode(ctx context.Context, street, crossStreets, _ string) (domain.Coordinate, bool) {
	street = normalize(street)
	segments := SplitCrossStreets(crossStreets)

	switch {
	case street != "" && len(segments) >= 2:
		a, okA := r.ResolvePair(ctx, street, segments[0])
		b, okB := r.ResolvePair(ctx, street, segments[1])
		switch {
		case okA && okB:
			return domain.Midpoint(a, b), true
		case okA:
			return a, true
		case okB:
			return b, true
		}
		return domain.Coordinate{}, false
	case street != "" && len(segments) == 1:
		return r.ResolvePair(ctx, street, segments[0])
	case street == "" && len(segments) >= 2:
		return r.ResolvePair(ctx, segments[0], segments[1])
	default:
		return domain.Coordinate{}, false
	}
}

// ResolvePair finds the junction of two named streets. The result does not
// depend on argument order.
func (r *Resolver) ResolvePair(ctx context.Context, a, b string) (domain.Coordinate, bool) {
	a, b = normalize(a), normalize(b)

	if r.cache != nil {
		if coord, found, cached := r.cache.Get(a, b); cached {
			r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return coord, found
		}
		r.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	}

	coord, found, err := r.resolve(ctx, a, b)
	if err != nil {
		r.metrics.GeocodeLookups.WithLabelValues("error").Inc()
		r.logger.Warn("intersection lookup failed", "street_a", a, "street_b", b, "error", err)
		return domain.Coordinate{}, false
	}

	if found {
		r.metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
	} else {
		r.metrics.GeocodeLookups.WithLabelValues("unresolved").Inc()
	}
	if r.cache != nil {
		r.cache.Put(a, b, coord, found)
	}
	return coord, found
}

func (r *Resolver) resolve(ctx context.Context, a, b string) (domain.Coordinate, bool, error) {
	candidates, err := r.candidates(ctx, a, b)
	if err != nil {
		return domain.Coordinate{}, false, err
	}

	var (
		best      domain.IntersectionCandidate
		bestScore = -1.0
	)
	for _, c := range candidates {
		score := r.score(a, b, c)
		if score > bestScore || (score == bestScore && compareCandidates(c, best) < 0) {
			best, bestScore = c, score
		}
	}

	if bestScore < float64(r.threshold) {
		r.logger.Debug("no intersection above threshold",
			"street_a", a, "street_b", b,
			"candidates", len(candidates), "best_score", bestScore,
		)
		return domain.Coordinate{}, false, nil
	}
	return best.Coordinate(), true, nil
}

// candidates merges the index rows for the anchors of both query strings.
func (r *Resolver) candidates(ctx context.Context, a, b string) ([]domain.IntersectionCandidate, error) {
	seen := make(map[domain.IntersectionCandidate]struct{})
	var merged []domain.IntersectionCandidate

	searched := make(map[string]struct{}, 2)
	for _, anchor := range []string{anchorToken(a), anchorToken(b)} {
		if anchor == "" {
			continue
		}
		if _, done := searched[anchor]; done {
			continue
		}
		searched[anchor] = struct{}{}

		rows, err := r.index.Candidates(ctx, anchor, r.limit)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if _, dup := seen[row]; dup {
				continue
			}
			seen[row] = struct{}{}
			merged = append(merged, row)
		}
	}
	return merged, nil
}

// score averages the similarities of the better of the two pairings.
func (r *Resolver) score(a, b string, c domain.IntersectionCandidate) float64 {
	straight := r.sim(a, c.StreetA) + r.sim(b, c.StreetB)
	crossed := r.sim(a, c.StreetB) + r.sim(b, c.StreetA)
	return float64(max(straight, crossed)) / 2
}

func compareCandidates(x, y domain.IntersectionCandidate) int {
	return cmp.Or(
		cmp.Compare(x.StreetA, y.StreetA),
		cmp.Compare(x.StreetB, y.StreetB),
		cmp.Compare(x.Lat, y.Lat),
		cmp.Compare(x.Lon, y.Lon),
	)
}
