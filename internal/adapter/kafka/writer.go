package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/config"
	"github.com/couchcryptid/pollution-reports/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes report change events to the events topic.
// It implements store.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// eventsBatchTimeout bounds how long a single event waits in the writer
// before it is flushed. Events are published one per store mutation.
const eventsBatchTimeout = 10 * time.Millisecond

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: eventsBatchTimeout,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one event keyed by report id, so all events for a report
// land on the same partition in order.
func (w *Writer) Publish(ctx context.Context, event domain.ReportEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}
	w.logger.Debug("report event published", "kind", event.Kind, "report_id", event.ReportID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ReportEvent into a Kafka message.
func serializeToMessage(event domain.ReportEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ReportID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(event.Kind)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
