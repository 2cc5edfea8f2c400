// Package kafka implements the eventstream Publisher on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers are the Kafka bootstrap addresses.
	Brokers []string

	// Topic is the topic fact events are written to.
	Topic string

	// Logger is the injected slog logger.
	Logger *slog.Logger
}

// Publisher writes fact events to a Kafka topic as JSON messages keyed by
// fact ID, so replays of the same fact land in the same partition.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafkago.RequireOne,
	}

	c.Logger.Info("kafka publisher initialized",
		"brokers", c.Brokers,
		"topic", c.Topic,
	)

	return &Publisher{
		writer: writer,
		logger: c.Logger,
	}, nil
}

// PublishFact serializes the event and writes it to the topic.
func (p *Publisher) PublishFact(ctx context.Context, event *eventstream.FactEvent) error {
	if event == nil {
		return eventstream.ErrNilFactEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling fact event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Fact.ID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing fact event %s: %w", event.EventID, err)
	}

	p.logger.Debug("fact event published",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"fact_id", event.Fact.ID,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Ensure Publisher implements eventstream.Publisher
var _ eventstream.Publisher = (*Publisher)(nil)
