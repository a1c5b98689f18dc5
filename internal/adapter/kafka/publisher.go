package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/burn-area-service/internal/config"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
)

// EventType labels completion messages.
const EventType = "AnalysisCompleted"

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one completion message per finished analysis.
// It implements pipeline.EventPublisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// Publish sends the run record keyed by run ID, so events for one run stay
// on one partition.
func (p *Publisher) Publish(ctx context.Context, run domain.Run) error {
	msg, err := serializeToMessage(run)
	if err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish run %s: %w", run.ID, err)
	}
	p.metrics.EventsPublished.WithLabelValues("success").Inc()
	p.logger.Debug("completion event published", "run_id", run.ID, "status", run.Status)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a run record into a Kafka message.
func serializeToMessage(run domain.Run) (kafkago.Message, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(run.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "status", Value: []byte(run.Status)},
			{Key: "finished_at", Value: []byte(run.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
