package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
)

func testConfig() config.KafkaConfig {
	return config.KafkaConfig{Brokers: []string{"localhost:9092"}}
}

type sample struct {
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
}

func TestEncodeThenDecode(t *testing.T) {
	msg, err := encode(Event{Key: "index", Value: sample{Prefix: "qa_", Count: 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte("index"), msg.Key)
	assert.Equal(t, "content-type", msg.Headers[0].Key)
	assert.False(t, msg.Time.IsZero())

	got, err := DecodeJSON[sample](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, sample{Prefix: "qa_", Count: 3}, got)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode(Event{Key: "x", Value: make(chan int)})
	assert.ErrorContains(t, err, "marshaling event value")
}

func TestDecodeFailureIsSkippable(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte("{"))
	assert.True(t, errors.Is(err, ErrSkip))
}

func TestProducerModes(t *testing.T) {
	durable := NewProducer(testConfig(), "index.complete")
	assert.False(t, durable.writer.Async)
	assert.Equal(t, "durable", durable.mode.String())

	stream := NewProducerMode(testConfig(), "rank.events", Stream)
	assert.True(t, stream.writer.Async)
	assert.NotNil(t, stream.writer.Completion)
	assert.Equal(t, "stream", stream.mode.String())
}

// fakeReader serves msgs in order, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("ok")},
		{Offset: 2, Value: []byte("flaky")},
		{Offset: 3, Value: []byte("poison")},
		{Offset: 4, Value: []byte("broken")},
	}}
	calls := map[string]int{}
	var mu sync.Mutex
	handler := func(_ context.Context, _ []byte, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		v := string(value)
		calls[v]++
		switch {
		case v == "flaky" && calls[v] < 2:
			return errors.New("temporary")
		case v == "poison":
			return ErrSkip
		case v == "broken":
			return errors.New("always")
		}
		return nil
	}

	c := newConsumer(r, "rank.events", handler)
	c.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, r.commits())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls["flaky"])
	assert.Equal(t, 1, calls["poison"])
	assert.Equal(t, handlerAttempts, calls["broken"])
	assert.True(t, r.closed)
}

func TestConsumerLeavesMessageUncommittedOnShutdown(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 7}}}
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(r, "rank.events", func(context.Context, []byte, []byte) error {
		cancel()
		return errors.New("unavailable")
	})
	c.backoff = time.Hour

	require.NoError(t, c.Start(ctx))
	assert.Empty(t, r.commits())
}
