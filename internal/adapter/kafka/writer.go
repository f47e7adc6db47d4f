package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/rain-gauge-etl/internal/config"
	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// Message header keys.
const (
	HeaderRunID       = "run_id"
	HeaderStatus      = "status"
	HeaderGeneratedAt = "generated_at"
)

// Writer publishes storm summaries to a Kafka topic, one message per date
// keyed by the date so reruns land on the same partition.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured storm topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaStormTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Load publishes every storm summary of res in a single WriteMessages call.
func (w *Writer) Load(ctx context.Context, res *domain.RunResult) error {
	if len(res.Storms) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(res.Storms))
	for i := range res.Storms {
		msg, err := serializeToMessage(res.RunID, res.GeneratedAt, res.Storms[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish storm summaries: %w", err)
	}
	w.logger.Info("storm summaries published", "topic", w.writer.Topic, "count", len(msgs), "run_id", res.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StormSummary into a Kafka message.
func serializeToMessage(runID string, generatedAt time.Time, s domain.StormSummary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize storm summary %s: %w", s.Date, err)
	}
	return kafkago.Message{
		Key:   []byte(s.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderRunID, Value: []byte(runID)},
			{Key: HeaderStatus, Value: []byte(s.Status)},
			{Key: HeaderGeneratedAt, Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage reverses serializeToMessage for consumers of the storm topic.
func DecodeMessage(msg kafkago.Message) (domain.StormSummary, map[string]string, error) {
	var s domain.StormSummary
	if err := json.Unmarshal(msg.Value, &s); err != nil {
		return domain.StormSummary{}, nil, fmt.Errorf("decode storm summary: %w", err)
	}
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return s, headers, nil
}
