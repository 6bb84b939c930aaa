package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
)

// Event is one JSON message. Key selects the partition.
type Event struct {
	Key   string
	Value any
}

// Mode selects the delivery guarantees of a Producer.
type Mode int

const (
	// Durable writes block until every replica acknowledges. Used for
	// index events, which are rare and must not be lost.
	Durable Mode = iota
	// Stream batches writes in the background and acknowledges on the
	// leader only. Used for high-volume rank events where loss is
	// tolerated; Publish returns once the message is queued.
	Stream
)

func (m Mode) String() string {
	if m == Stream {
		return "stream"
	}
	return "durable"
}

// Producer publishes JSON-encoded events to a single topic.
type Producer struct {
	writer *kafka.Writer
	mode   Mode
	logger *slog.Logger
}

// NewProducer creates a Durable producer for topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return NewProducerMode(cfg, topic, Durable)
}

func NewProducerMode(cfg config.KafkaConfig, topic string, mode Mode) *Producer {
	logger := slog.Default().With("component", "kafka-producer", "topic", topic, "mode", mode.String())
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	switch mode {
	case Stream:
		w.Async = true
		w.RequiredAcks = kafka.RequireOne
		w.BatchSize = 500
		w.BatchTimeout = 250 * time.Millisecond
		w.MaxAttempts = 3
		w.Compression = kafka.Zstd
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("dropped event batch", "messages", len(msgs), "error", err)
			}
		}
	default:
		w.RequiredAcks = kafka.RequireAll
		w.BatchTimeout = 10 * time.Millisecond
		w.MaxAttempts = 5
	}
	return &Producer{writer: w, mode: mode, logger: logger}
}

// Publish encodes event.Value as JSON and writes it. In Stream mode write
// errors are reported by the completion callback, not returned.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published", "key", event.Key, "value_size", len(msg.Value))
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling event value: %w", err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	}, nil
}
