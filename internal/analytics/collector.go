package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
)

const (
	defaultBuffer = 10000
	drainTimeout  = 5 * time.Second
	eventKey      = "rank"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector forwards rank events to a Publisher from a single background
// goroutine so the request path never waits on Kafka. Events that do not
// fit in the buffer, or arrive after Close, are counted and dropped.
type Collector struct {
	producer Publisher
	events   chan RankEvent
	done     chan struct{}
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBuffer
	}
	return &Collector{
		producer: producer,
		events:   make(chan RankEvent, bufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publish loop. It runs until Close, or until ctx ends,
// after which buffered events are still published within drainTimeout.
func (c *Collector) Start(ctx context.Context) {
	c.logger.Info("analytics collector started", "buffer_size", cap(c.events))
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.publish(ctx, ev)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

// Track queues event without blocking.
func (c *Collector) Track(event RankEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.events <- event:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("analytics buffer full, dropping events", "dropped_total", n)
		}
	}
}

// Close stops accepting events and waits for the loop to finish publishing
// what was buffered. It is safe to call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()
	<-c.done
	c.logger.Info("analytics collector stopped", "dropped", c.dropped.Load(), "publish_failures", c.failed.Load())
}

// Dropped returns how many events were discarded without being published.
func (c *Collector) Dropped() int64 { return c.dropped.Load() }

func (c *Collector) publish(ctx context.Context, ev RankEvent) {
	if err := c.producer.Publish(ctx, kafka.Event{Key: eventKey, Value: ev}); err != nil {
		c.failed.Add(1)
		c.logger.Error("failed to publish rank event", "request_id", ev.RequestID, "error", err)
	}
}

// drain publishes whatever is buffered once the run context has ended.
func (c *Collector) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.publish(ctx, ev)
		default:
			return
		}
	}
}
