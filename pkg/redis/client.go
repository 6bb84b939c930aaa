// Package redis wraps go-redis/v9 for the rank-result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/resilience"
)

// scanBatch is both the SCAN page hint and the UNLINK batch size.
const scanBatch = 100

type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// NewClient connects and waits for a PING reply, retrying with backoff.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	c := &Client{
		rdb:    redis.NewClient(options(cfg)),
		logger: slog.Default().With("component", "redis", "addr", cfg.Addr),
	}
	err := resilience.Retry(ctx, "redis ping", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return c.Ping(ctx)
	})
	if err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	c.logger.Info("redis connected", "db", cfg.DB, "pool_size", cfg.PoolSize)
	return c, nil
}

// Get returns the bytes at key. A missing key yields an error for which
// IsNilError is true.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value under key; a zero ttl never expires.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern removes every key matching the glob pattern and returns how
// many were removed. Keys are unlinked one pipelined batch per SCAN page so
// a large namespace never blocks the server.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.unlink(ctx, keys)
			removed += n
			if err != nil {
				return removed, err
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Debug("flushed keys", "pattern", pattern, "removed", removed)
	return removed, nil
}

func (c *Client) unlink(ctx context.Context, keys []string) (int64, error) {
	var removed int64
	for _, chunk := range chunks(keys, scanBatch) {
		cmds, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Unlink(ctx, chunk...)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("unlinking %d keys: %w", len(chunk), err)
		}
		for _, cmd := range cmds {
			if ic, ok := cmd.(*redis.IntCmd); ok {
				removed += ic.Val()
			}
		}
	}
	return removed, nil
}

// chunks splits keys into slices of at most size elements.
func chunks(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

// IsNilError reports whether err means the key was not found.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PoolStats reports connection pool usage for health output.
func (c *Client) PoolStats() map[string]any {
	s := c.rdb.PoolStats()
	return map[string]any{
		"hits":        s.Hits,
		"misses":      s.Misses,
		"timeouts":    s.Timeouts,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
	}
}
