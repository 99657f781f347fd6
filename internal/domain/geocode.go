package domain

import (
	"context"
	"log/slog"
)

// EnrichWithLocation attempts to attach a coordinate to a new record.
// If geocoder is nil or nothing matches, the record is returned without a
// location (graceful degradation).
func EnrichWithLocation(ctx context.Context, rec IncidentRecord, geocoder Geocoder, logger *slog.Logger) IncidentRecord {
	if geocoder == nil {
		return rec
	}

	coord, ok := geocoder.Geocode(ctx, rec.Street, rec.CrossStreets, rec.Municipality)
	if !ok {
		logger.Debug("incident location unresolved",
			"fingerprint", rec.Fingerprint,
			"street", rec.Street,
			"cross_streets", rec.CrossStreets,
		)
		rec.Location = nil
		return rec
	}
	rec.Location = &coord
	return rec
}
