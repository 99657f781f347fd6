package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
	"github.com/couchcryptid/dispatch-feed-etl/internal/observability"
)

type streetGeocoder map[string]bool

func (g streetGeocoder) Geocode(_ context.Context, street, cross, _ string) (domain.Coordinate, bool) {
	return domain.Coordinate{Lat: 1, Lon: 2}, g[street+"|"+cross]
}

func TestReadLocations(t *testing.T) {
	input := "Street,Cross_Streets,Municipality\n" +
		"4400 BLOCK N MARKET ST,LINE AVE & KINGS HWY,SHREVEPORT\n" +
		",YOUREE DR/E 70TH ST\n"

	locs, err := readLocations(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, location{line: 2, street: "4400 BLOCK N MARKET ST", crossStreets: "LINE AVE & KINGS HWY", municipality: "SHREVEPORT"}, locs[0])
	assert.Equal(t, location{line: 3, crossStreets: "YOUREE DR/E 70TH ST"}, locs[1])
}

func TestReadLocations_MissingColumn(t *testing.T) {
	_, err := readLocations(strings.NewReader("street,municipality\nMAIN ST,SHREVEPORT\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross_streets")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		loc  location
		want string
	}{
		{location{street: "MAIN ST", crossStreets: "A ST & B ST"}, phaseStreetTwoCross},
		{location{street: "MAIN ST", crossStreets: "A ST"}, phaseStreetOneCross},
		{location{crossStreets: "A ST / B ST"}, phaseCrossPair},
		{location{crossStreets: "A ST"}, phaseUnplaceable},
		{location{street: "MAIN ST"}, phaseUnplaceable},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.loc))
		})
	}
}

func TestCheckAndReport(t *testing.T) {
	g := streetGeocoder{"MAIN ST|A ST": true, "|A ST & B ST": true}
	locs := []location{
		{line: 2, street: "MAIN ST", crossStreets: "A ST"},
		{line: 3, street: "OAK ST", crossStreets: "A ST"},
		{line: 4, crossStreets: "A ST & B ST"},
	}

	phases := check(context.Background(), g, locs)
	require.Len(t, phases, 4)
	assert.Equal(t, 2, phases[1].total)
	assert.Equal(t, 1, phases[1].resolved)
	assert.InDelta(t, 50, phases[1].rate(), 0.001)
	assert.Equal(t, 1, phases[2].resolved)
	assert.Zero(t, phases[3].rate())

	var buf bytes.Buffer
	report(&buf, 75, phases, true)
	out := buf.String()
	assert.Contains(t, out, "threshold 75")
	assert.Contains(t, out, "overall")
	assert.Contains(t, out, `line 3: "OAK ST" / "A ST"`)
}

type staticIndex []domain.IntersectionCandidate

func (s staticIndex) Candidates(context.Context, string, int) ([]domain.IntersectionCandidate, error) {
	return s, nil
}

func TestNewResolver_UsesConfiguredThreshold(t *testing.T) {
	idx := staticIndex{{StreetA: "KINGS HWY", StreetB: "LINE AVE", Lat: 32.48, Lon: -93.75}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	strict := newResolver(&config.Config{MatchThreshold: 100, CandidateLimit: 10}, idx, observability.NewMetricsForTesting(), logger)
	_, ok := strict.ResolvePair(context.Background(), "LINE AVENUE", "KINGS HWY")
	assert.False(t, ok)

	loose := newResolver(&config.Config{MatchThreshold: 60, CandidateLimit: 10}, idx, observability.NewMetricsForTesting(), logger)
	coord, ok := loose.ResolvePair(context.Background(), "LINE AVENUE", "KINGS HWY")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 32.48, Lon: -93.75}, coord)
}
