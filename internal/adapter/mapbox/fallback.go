package mapbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/geocode"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

// FallbackGeocoder asks an external provider when the primary geocoder
// cannot place an incident. Accepted provider answers are cached by query.
type FallbackGeocoder struct {
	primary      domain.Geocoder
	provider     domain.ForwardGeocoder
	region       string
	minRelevance float64
	cache        *lru.Cache[string, domain.Coordinate]
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// FallbackConfig configures a FallbackGeocoder.
type FallbackConfig struct {
	Region       string  // appended to every query, e.g. "Caddo Parish, Louisiana"
	MinRelevance float64 // provider answers below this are ignored
	CacheSize    int
}

// NewFallbackGeocoder wraps primary with a provider lookup.
func NewFallbackGeocoder(primary domain.Geocoder, provider domain.ForwardGeocoder, cfg FallbackConfig, metrics *observability.Metrics, logger *slog.Logger) (*FallbackGeocoder, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, domain.Coordinate](size)
	if err != nil {
		return nil, fmt.Errorf("create fallback cache: %w", err)
	}
	return &FallbackGeocoder{
		primary:      primary,
		provider:     provider,
		region:       cfg.Region,
		minRelevance: cfg.MinRelevance,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Geocode implements domain.Geocoder.
func (f *FallbackGeocoder) Geocode(ctx context.Context, street, crossStreets, municipality string) (domain.Coordinate, bool) {
	if coord, ok := f.primary.Geocode(ctx, street, crossStreets, municipality); ok {
		return coord, true
	}

	query := buildQuery(street, crossStreets, municipality, f.region)
	if query == "" {
		return domain.Coordinate{}, false
	}
	if coord, ok := f.cache.Get(query); ok {
		return coord, true
	}

	result, err := f.provider.ForwardGeocode(ctx, query)
	if err != nil {
		f.metrics.GeocodeFallback.WithLabelValues("error").Inc()
		f.logger.Warn("fallback geocoding failed", "query", query, "error", err)
		return domain.Coordinate{}, false
	}
	if result.Lat == 0 && result.Lon == 0 {
		f.metrics.GeocodeFallback.WithLabelValues("empty").Inc()
		return domain.Coordinate{}, false
	}
	if result.Confidence < f.minRelevance {
		f.metrics.GeocodeFallback.WithLabelValues("low_relevance").Inc()
		f.logger.Debug("fallback match below relevance floor",
			"query", query, "place", result.FormattedAddress, "relevance", result.Confidence)
		return domain.Coordinate{}, false
	}

	f.metrics.GeocodeFallback.WithLabelValues("success").Inc()
	coord := domain.Coordinate{Lat: result.Lat, Lon: result.Lon}
	f.cache.Add(query, coord)
	return coord, true
}

// buildQuery renders "STREET & CROSS, MUNICIPALITY, REGION". Block
// descriptors are removed so "4400 BLOCK N MARKET ST" reads as an address.
func buildQuery(street, crossStreets, municipality, region string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToUpper(street)) {
		if w != "BLOCK" && w != "BLK" {
			words = append(words, w)
		}
	}
	street = strings.Join(words, " ")

	var location string
	segments := geocode.SplitCrossStreets(crossStreets)
	switch {
	case street != "" && len(segments) > 0:
		location = street + " & " + segments[0]
	case street != "":
		location = street
	case len(segments) >= 2:
		location = segments[0] + " & " + segments[1]
	case len(segments) == 1:
		location = segments[0]
	}
	if location == "" {
		return ""
	}

	parts := []string{location}
	for _, p := range []string{strings.TrimSpace(municipality), strings.TrimSpace(region)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
