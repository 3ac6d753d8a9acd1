// Package kafka publishes observation events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ctxmem/pkg/eventstream"
	"github.com/papercomputeco/ctxmem/pkg/logger"
)

// Writer is the part of *kafkago.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds each publish. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

const DefaultWriteTimeout = 10 * time.Second

// Publisher is a Kafka-backed eventstream.Publisher. Messages are keyed by
// session id so a session's events land on one partition in order.
type Publisher struct {
	writer  Writer
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher connects a writer for c.
func NewPublisher(c Config, log *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewWithWriter(w, c.Topic, c.WriteTimeout, log), nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w Writer, topic string, timeout time.Duration, log *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Publisher{writer: w, topic: topic, timeout: timeout, logger: logger.OrNop(log)}
}

// PublishObservation writes one message.
func (p *Publisher) PublishObservation(ctx context.Context, event *eventstream.ObservationRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding observation event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Observation.SessionID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug("published observation", "topic", p.topic, "observation_id", event.Observation.ID)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
