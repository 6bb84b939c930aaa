// Command analytics aggregates rank events published by searchers and serves
// the summary at GET /api/v1/analytics. When PostgreSQL is reachable the
// aggregate is snapshotted periodically and restored on start.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/middleware"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("analytics requires kafka brokers")
		os.Exit(1)
	}

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
	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	var saved <-chan struct{}
	var snapshots analytics.SnapshotLister
	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer pg.Close()
		store := analytics.NewStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot table", "error", err)
			os.Exit(1)
		}
		latest, err := store.LatestSnapshot(ctx)
		if err != nil {
			slog.Warn("could not restore snapshot", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
			slog.Info("restored analytics snapshot", "captured_at", latest.CapturedAt, "total_ranks", latest.TotalRanks)
		}
		if cfg.Analytics.SnapshotInterval > 0 {
			saved = store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		}
		snapshots = store
		checker.Register("postgres", health.WithDetails(health.PingCheck(pg.Ping, false), func() map[string]any {
			s := pg.Stats()
			return map[string]any{"open": s.Open, "in_use": s.InUse, "idle": s.Idle}
		}))
	}

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Analytics.ConsumerGroup
	consumer := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.RankEvents, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("rank event consumer error", "error", err)
		}
	}()
	slog.Info("consuming rank events", "topic", cfg.Kafka.Topics.RankEvents, "group", kafkaCfg.ConsumerGroup)

	mux := http.NewServeMux()
	ah := analytics.NewHandler(agg, snapshots)
	mux.HandleFunc("GET /api/v1/analytics", ah.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", ah.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.RankCORSConfig(cfg.Search.CORSOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if saved != nil {
		select {
		case <-saved:
		case <-time.After(10 * time.Second):
			slog.Warn("timed out waiting for final snapshot")
		}
	}
	slog.Info("analytics service stopped")
}
