package domain

import "context"

// Geocoder approximates the location of an incident from its street and
// cross-street text. It reports false when no location could be found;
// failing to locate an incident is not an error.
type Geocoder interface {
	Geocode(ctx context.Context, street, crossStreets, municipality string) (Coordinate, bool)
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider relevance score
}

// ForwardGeocoder resolves free-text queries through an external provider.
type ForwardGeocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}
