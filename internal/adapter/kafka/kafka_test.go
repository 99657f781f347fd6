package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	change := domain.Change{
		Kind: domain.ChangeOpened,
		At:   now,
		Record: domain.IncidentRecord{
			ID:           7,
			PartitionKey: "agency_spd",
			Agency:       "SPD",
			Description:  "ACCIDENT",
			Fingerprint:  "abc123",
			FirstSeen:    now,
			LastSeen:     now,
			Location:     &domain.Coordinate{Lat: 32.5, Lon: -93.75},
		},
	}

	msg, err := serializeToMessage(change)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc123"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "change_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("opened"), msg.Headers[0].Value)
	assert.Equal(t, "partition_key", msg.Headers[1].Key)
	assert.Equal(t, []byte("agency_spd"), msg.Headers[1].Value)
	assert.Equal(t, "changed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded struct {
		Kind     string `json:"kind"`
		Incident struct {
			ID          int64  `json:"id"`
			Agency      string `json:"agency"`
			Fingerprint string `json:"fingerprint"`
			Resolved    bool   `json:"resolved"`
			Location    struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"location"`
		} `json:"incident"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "opened", decoded.Kind)
	assert.Equal(t, int64(7), decoded.Incident.ID)
	assert.Equal(t, "SPD", decoded.Incident.Agency)
	assert.Equal(t, "abc123", decoded.Incident.Fingerprint)
	assert.False(t, decoded.Incident.Resolved)
	assert.Equal(t, 32.5, decoded.Incident.Location.Lat)
}

func TestSerializeToMessage_NoLocation(t *testing.T) {
	msg, err := serializeToMessage(domain.Change{
		Kind:   domain.ChangeResolved,
		Record: domain.IncidentRecord{Fingerprint: "fp", Resolved: true},
	})
	require.NoError(t, err)

	assert.NotContains(t, string(msg.Value), `"location"`)
	assert.Contains(t, string(msg.Value), `"resolved":true`)
}

func TestWriter_PublishEmpty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "changes"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	assert.NoError(t, w.Publish(context.Background(), nil))
}
