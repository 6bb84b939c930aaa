// Package events carries index lifecycle notifications between the indexer
// and searchers over Kafka.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

// IndexBuilt announces that a vocabulary and every configured expert are
// persisted and ready to load.
type IndexBuilt struct {
	Prefix         string    `json:"prefix"`
	Experts        []string  `json:"experts"`
	Documents      int       `json:"documents"`
	VocabularySize int       `json:"vocabulary_size"`
	BuiltAt        time.Time `json:"built_at"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// PublishIndexBuilt sends ev keyed by its vocabulary prefix, so events for
// one variant stay ordered on a partition.
func PublishIndexBuilt(ctx context.Context, p Publisher, m *metrics.Metrics, ev IndexBuilt) error {
	err := p.Publish(ctx, kafka.Event{Key: "vocab:" + ev.Prefix, Value: ev})
	if m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.IndexEventsTotal.WithLabelValues("published", status).Inc()
	}
	if err != nil {
		return fmt.Errorf("publishing index-built event: %w", err)
	}
	return nil
}

// Action reacts to a decoded IndexBuilt event.
type Action func(ctx context.Context, ev IndexBuilt) error

// NewIndexBuiltHandler decodes IndexBuilt messages and runs every action in
// order. All actions run even if one fails; the joined error is returned so
// the message is redelivered.
func NewIndexBuiltHandler(m *metrics.Metrics, actions ...Action) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-events")
	return func(ctx context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[IndexBuilt](value)
		if err != nil {
			count(m, "malformed")
			return err
		}
		logger.Info("index built",
			"prefix", ev.Prefix,
			"experts", ev.Experts,
			"documents", ev.Documents,
			"built_at", ev.BuiltAt,
		)
		var errs []error
		for _, act := range actions {
			if err := act(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			count(m, "error")
			return err
		}
		count(m, "ok")
		return nil
	}
}

func count(m *metrics.Metrics, status string) {
	if m != nil {
		m.IndexEventsTotal.WithLabelValues("consumed", status).Inc()
	}
}
