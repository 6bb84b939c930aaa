// Package kafka carries index-complete and rank events over segmentio/kafka-go.
// Values are JSON; producers choose durable or streaming delivery and
// consumers hand each message to a MessageHandler.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
)

// ErrSkip marks a message that can never be processed, such as an
// undecodable payload. It is committed immediately without retries.
var ErrSkip = errors.New("skip message")

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

const (
	handlerAttempts = 3
	fetchBackoff    = time.Second
)

// fetcher is the part of *kafka.Reader the consume loop drives.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer delivers a topic's messages to a handler in partition order.
type Consumer struct {
	reader  fetcher
	handler MessageHandler
	backoff time.Duration
	logger  *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. A new group starts at the
// latest offset.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r fetcher, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		backoff: 200 * time.Millisecond,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled and then closes the reader. A
// handler error is retried up to three times; after that, or at once for
// ErrSkip, the message is logged and committed so the partition keeps
// moving.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			if !sleep(ctx, fetchBackoff) {
				return nil
			}
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// process runs the handler with retries. It returns false only when ctx
// ended mid-retry, in which case the message stays uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg.Key, msg.Value)
		switch {
		case err == nil:
			return true
		case errors.Is(err, ErrSkip):
			log.Warn("skipping message", "error", err)
			return true
		case attempt == handlerAttempts:
			log.Error("dropping message after retries", "attempts", attempt, "error", err)
			return true
		}
		log.Warn("handler failed, retrying", "attempt", attempt, "error", err)
		if !sleep(ctx, c.backoff*time.Duration(attempt)) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DecodeJSON unmarshals value into T. Failures wrap ErrSkip.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %v: %w", err, ErrSkip)
	}
	return v, nil
}
