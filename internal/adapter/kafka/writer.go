package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/dispatch-feed-etl/internal/config"
	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// Writer publishes incident lifecycle changes to a Kafka topic.
// It implements pipeline.ChangePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured change feed topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// changeMessage is the JSON value of a change feed message.
type changeMessage struct {
	Kind     domain.ChangeKind     `json:"kind"`
	At       time.Time             `json:"at"`
	Incident domain.IncidentRecord `json:"incident"`
}

// Publish writes every change in a single WriteMessages call. Messages are
// keyed by fingerprint so one incident's changes land on one partition.
func (w *Writer) Publish(ctx context.Context, changes []domain.Change) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(changes))
	for i := range changes {
		msg, err := serializeToMessage(changes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d changes: %w", len(msgs), err)
	}
	w.logger.Debug("changes published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Change into a Kafka message.
func serializeToMessage(change domain.Change) (kafkago.Message, error) {
	data, err := json.Marshal(changeMessage{
		Kind:     change.Kind,
		At:       change.At.UTC(),
		Incident: change.Record,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident change: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(change.Record.Fingerprint),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "change_kind", Value: []byte(change.Kind)},
			{Key: "partition_key", Value: []byte(change.Record.PartitionKey)},
			{Key: "changed_at", Value: []byte(change.At.UTC().Format(time.RFC3339))},
		},
	}, nil
}
