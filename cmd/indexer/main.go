// Command indexer builds the vocabulary and every configured expert from the
// Q/A corpus, persists them to the cache store and announces the build on
// Kafka. It is the only process that writes the cache store, and it exits
// once the build completes.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"prefix", cfg.Vocabulary.Prefix,
		"experts", len(cfg.Experts.Models),
		"cache_backend", cfg.Cache.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer finished")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	slog.Info("connected to corpus database", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	store, closer, err := pipeline.OpenStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("opening cache store: %w", err)
	}
	defer closer.Close()

	opts := pipeline.Options{
		Source:  corpus.NewPostgresSource(pg.DB),
		Store:   store,
		Metrics: m,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts.Publisher = producer
	} else {
		slog.Warn("no kafka brokers configured, index events disabled")
	}

	_, err = pipeline.Build(ctx, cfg, opts)
	return err
}
