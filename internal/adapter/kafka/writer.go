package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/config"
	"github.com/couchcryptid/erowatch-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes assessed measurements to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Messages
// are keyed by sensor so each sensor's assessments stay ordered.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the measurements in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, measurements []domain.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(measurements))
	for i := range measurements {
		msg, err := serializeToMessage(measurements[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish assessments: %w", err)
	}
	w.logger.Debug("assessments published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Measurement into a Kafka message.
func serializeToMessage(m domain.Measurement) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize measurement: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "risk_level", Value: []byte(m.Level)},
		{Key: "processed_at", Value: []byte(m.ProcessedAt.Format(time.RFC3339))},
	}
	if m.Alert != nil {
		headers = append(headers, kafkago.Header{Key: "alert_type", Value: []byte(m.Alert.Type)})
	}
	return kafkago.Message{
		Key:     []byte(m.Telemetry.SensorID),
		Value:   data,
		Headers: headers,
	}, nil
}
