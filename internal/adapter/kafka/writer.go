package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quakemap/internal/config"
	"github.com/couchcryptid/quakemap/internal/domain"
)

// Writer publishes styled earthquake markers to a Kafka topic.
// It implements pipeline.MarkerPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured marker topic.
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

// PublishMarkers writes one message per styled event in a single
// WriteMessages call. Keys are event IDs so updates to the same event land
// on the same partition.
func (w *Writer) PublishMarkers(ctx context.Context, events []domain.StyledEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish markers: %w", err)
	}
	w.logger.Debug("published markers", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StyledEvent into a Kafka message.
func serializeToMessage(event domain.StyledEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize styled event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "fill_color", Value: []byte(event.Style.FillColor)},
			{Key: "rendered_at", Value: []byte(event.RenderedAt.Format(time.RFC3339))},
		},
	}, nil
}
