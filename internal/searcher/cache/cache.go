// Package cache stores ensemble rank results in Redis, keyed by the
// normalized query and result count. Lookups go through a circuit breaker
// so an unavailable Redis degrades to uncached ranking instead of failing
// queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/ensemble"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/resilience"
)

const keyPrefix = "rank:"

// KV is the subset of *pkgredis.Client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Options configures a QueryCache.
type Options struct {
	// Namespace separates results of different vocabulary variants.
	Namespace string
	TTL       time.Duration
	Metrics   *metrics.Metrics
	Breaker   resilience.CircuitBreakerConfig
	// ComputeTimeout bounds a collapsed computation, which runs detached
	// from the request that started it. Zero leaves it unbounded.
	ComputeTimeout time.Duration
}

type QueryCache struct {
	kv      KV
	opts    Options
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(kv KV, opts Options) *QueryCache {
	m := opts.Metrics
	cbCfg := opts.Breaker
	cbCfg.IsFailure = func(err error) bool { return err != nil && !pkgredis.IsNilError(err) }
	cbCfg.OnStateChange = func(name string, s resilience.State) {
		if m != nil {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		}
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("rank-cache").Set(float64(resilience.StateClosed))
	}
	return &QueryCache{
		kv:      kv,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker("rank-cache", cbCfg),
		logger:  slog.Default().With("component", "rank-cache", "namespace", opts.Namespace),
	}
}

// Get returns the cached ranking for query and n. Redis failures, open
// circuits and undecodable entries are all reported as misses.
func (c *QueryCache) Get(ctx context.Context, query string, n int) ([]ensemble.Ranked, bool) {
	result, ok := c.lookup(ctx, c.Key(query, n))
	if !ok {
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheHitsTotal.Inc()
	}
	return result, true
}

// lookup reads key without touching the hit and miss counters.
func (c *QueryCache) lookup(ctx context.Context, key string) ([]ensemble.Ranked, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		v, err := c.kv.Get(ctx, key)
		data = v
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result []ensemble.Ranked
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.logger.Debug("cache hit", "key", key)
	return result, true
}

// Set stores result under query and n. Failures are logged, never returned.
func (c *QueryCache) Set(ctx context.Context, query string, n int, result []ensemble.Ranked) {
	c.store(ctx, c.Key(query, n), result)
}

func (c *QueryCache) store(ctx context.Context, key string, result []ensemble.Ranked) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.kv.Set(ctx, key, data, c.opts.TTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

type computed struct {
	result []ensemble.Ranked
	hit    bool
}

// GetOrCompute returns the cached ranking or runs compute once per key
// across concurrent callers and caches its result. The bool reports a hit.
//
// The shared computation re-reads the cache first, since a caller that
// queued behind a leader which just finished would otherwise recompute. It
// runs under a context detached from ctx, so one caller going away does not
// fail the others; each caller still stops waiting when its own ctx ends.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	n int,
	compute func(ctx context.Context) ([]ensemble.Ranked, error),
) ([]ensemble.Ranked, bool, error) {
	if result, ok := c.Get(ctx, query, n); ok {
		return result, true, nil
	}
	key := c.Key(query, n)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if c.opts.ComputeTimeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, c.opts.ComputeTimeout)
			defer cancel()
		}
		if result, ok := c.lookup(shared, key); ok {
			return computed{result: result, hit: true}, nil
		}
		result, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.store(shared, key, result)
		return computed{result: result}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		v := res.Val.(computed)
		return v.result, v.hit, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate deletes every entry in the cache's namespace.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	pattern := keyPrefix + c.opts.Namespace + ":*"
	deleted, err := c.kv.FlushByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating rank cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the cache circuit breaker's state.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *QueryCache) BreakerCounts() resilience.Counts {
	return c.breaker.Counts()
}

// Key is the Redis key for query and n.
func (c *QueryCache) Key(query string, n int) string {
	raw := fmt.Sprintf("%s|n=%d", NormalizeQuery(query), n)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.opts.Namespace, hash[:16])
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheMissesTotal.Inc()
	}
}

// NormalizeQuery reduces query to its sorted tokens. Queries are encoded as
// bags of words, so token order and case never change a ranking.
func NormalizeQuery(query string) string {
	tokens := tokenizer.Tokenize(query)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
