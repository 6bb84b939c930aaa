// Command searcher serves the ensemble rank API. It only loads cached
// artifacts written by the indexer and never builds; when an IndexBuilt
// event arrives for its vocabulary prefix it reloads the pipeline and
// clears the rank cache.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/resilience"
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
	slog.Info("starting searcher", "port", cfg.Server.Port, "prefix", cfg.Vocabulary.Prefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	store, closer, err := pipeline.OpenStore(cfg.Cache)
	if err != nil {
		slog.Error("failed to open cache store", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, rank caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cache.Options{
			Namespace: cfg.Vocabulary.Prefix,
			TTL:       cfg.Redis.CacheTTL,
			Metrics:   m,
			Breaker:   resilience.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second},

			ComputeTimeout: cfg.Server.WriteTimeout,
		})
		slog.Info("rank cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	h := handler.New(queryCache, m, cfg.Search.DefaultLimit)
	if cfg.Analytics.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducerMode(cfg.Kafka, cfg.Kafka.Topics.RankEvents, kafka.Stream)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		h.SetTracker(collector)
	}

	reload := func(ctx context.Context) error {
		res, err := pipeline.Load(ctx, cfg, store, m)
		if err != nil {
			return err
		}
		h.SetRanker(res.Ranker)
		slog.Info("ranker loaded", "experts", res.Ranker.Experts(), "vocabulary_size", res.Vocabulary.Size())
		return nil
	}
	if err := reload(ctx); err != nil {
		// Readiness stays down until an IndexBuilt event triggers a reload.
		slog.Error("initial load failed, serving 503 until an index is built", "error", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete,
			events.NewIndexBuiltHandler(m, onIndexBuilt(cfg.Vocabulary.Prefix, store, queryCache, reload)))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("ranker", health.ReadyCheck(h.Ready, ""))
	if redisClient != nil {
		checker.Register("redis", health.WithDetails(health.PingCheck(redisClient.Ping, false), redisClient.PoolStats))
	}

	opts := router.Options{
		Metrics:     m,
		Timeout:     cfg.Server.WriteTimeout,
		CORSOrigins: cfg.Search.CORSOrigins,
	}
	if cfg.Search.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Search.RateLimit, cfg.Search.RateWindow)
		limiter.StartCleanup(ctx, cfg.Search.RateWindow)
		opts.Limiter = limiter
		slog.Info("rate limiting enabled", "limit", cfg.Search.RateLimit, "window", cfg.Search.RateWindow)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(h, checker, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("searcher listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("searcher stopped")
}

// onIndexBuilt reloads the pipeline and clears the rank cache when the
// event is for this searcher's vocabulary prefix. The cache is cleared
// only after a successful reload.
func onIndexBuilt(prefix string, store cachestore.Store, qc *cache.QueryCache, reload func(context.Context) error) events.Action {
	log := slog.Default().With("component", "index-reload", "prefix", prefix)
	return func(ctx context.Context, ev events.IndexBuilt) error {
		if ev.Prefix != prefix {
			log.Debug("ignoring index event for other prefix", "event_prefix", ev.Prefix)
			return nil
		}
		if _, ok := store.(*cachestore.BadgerStore); ok {
			log.Warn("badger store is held open by this process; restart to pick up a new build")
			return nil
		}
		if err := reload(ctx); err != nil {
			return fmt.Errorf("reloading pipeline: %w", err)
		}
		if qc != nil {
			if _, err := qc.Invalidate(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
