package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func sample() IndexBuilt {
	return IndexBuilt{
		Prefix:         "v20000",
		Experts:        []string{"tfidf", "lsi-200"},
		Documents:      42,
		VocabularySize: 20000,
		BuiltAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishIndexBuilt(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := &recordingPublisher{}

	require.NoError(t, PublishIndexBuilt(context.Background(), p, m, sample()))
	require.Len(t, p.events, 1)
	assert.Equal(t, "vocab:v20000", p.events[0].Key)
	assert.Equal(t, sample(), p.events[0].Value)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexEventsTotal.WithLabelValues("published", "ok")))

	p.err = errors.New("broker down")
	assert.Error(t, PublishIndexBuilt(context.Background(), p, nil, sample()))
}

func TestHandlerRunsActions(t *testing.T) {
	var got []IndexBuilt
	record := func(_ context.Context, ev IndexBuilt) error {
		got = append(got, ev)
		return nil
	}
	h := NewIndexBuiltHandler(nil, record, record)

	payload, err := json.Marshal(sample())
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), []byte("vocab:v20000"), payload))

	require.Len(t, got, 2)
	assert.Equal(t, sample(), got[0])
}

func TestHandlerSkipsMalformedPayload(t *testing.T) {
	called := false
	h := NewIndexBuiltHandler(nil, func(context.Context, IndexBuilt) error {
		called = true
		return nil
	})
	err := h(context.Background(), nil, []byte("{broken"))
	assert.ErrorIs(t, err, kafka.ErrSkip)
	assert.False(t, called)
}

func TestHandlerJoinsActionErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	boom := errors.New("redis down")
	second := false
	h := NewIndexBuiltHandler(m,
		func(context.Context, IndexBuilt) error { return boom },
		func(context.Context, IndexBuilt) error { second = true; return nil },
	)
	payload, err := json.Marshal(sample())
	require.NoError(t, err)

	err = h(context.Background(), nil, payload)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, kafka.ErrSkip)
	assert.True(t, second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexEventsTotal.WithLabelValues("consumed", "error")))
}
