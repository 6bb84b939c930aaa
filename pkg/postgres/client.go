// Package postgres opens the pooled lib/pq connection used by the corpus
// source and the analytics snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/resilience"
)

const pingTimeout = 5 * time.Second

type Client struct {
	DB     *sql.DB
	logger *slog.Logger
}

// New opens the pool and waits for the database to answer.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	c, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.WaitReady(ctx, 5); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Open configures the pool without touching the network.
func Open(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return Wrap(db), nil
}

// Wrap adopts an existing handle.
func Wrap(db *sql.DB) *Client {
	return &Client{DB: db, logger: slog.Default().With("component", "postgres")}
}

// WaitReady pings with backoff until the database answers or attempts run
// out.
func (c *Client) WaitReady(ctx context.Context, attempts int) error {
	err := resilience.Retry(ctx, "postgres ping", resilience.RetryConfig{MaxAttempts: attempts}, func() error {
		return c.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("waiting for postgres: %w", err)
	}
	s := c.DB.Stats()
	c.logger.Info("postgres ready", "open_connections", s.OpenConnections, "max_open", s.MaxOpenConnections)
	return nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping bounds a single round trip to pingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.DB.PingContext(ctx)
}

// PoolStats summarises the pool for health output.
type PoolStats struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"wait_count"`
}

func (c *Client) Stats() PoolStats {
	s := c.DB.Stats()
	return PoolStats{Open: s.OpenConnections, InUse: s.InUse, Idle: s.Idle, WaitCount: s.WaitCount}
}

// InTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; a rollback failure is reported
// alongside fn's error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if err == nil || committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	committed = true
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
