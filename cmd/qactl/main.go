// Command qactl is the operator CLI for the Q&A retrieval stack: it builds
// or inspects the vocabulary, encodes text, runs one-off rank queries,
// exports training sets and manages the corpus schema.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
)

var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qactl",
	Short: "Operate the Q&A ensemble retrieval stack",
	Long: `qactl works directly against the corpus database and the cache store.

Only one process may build into a cache store at a time; do not run build
commands while the indexer is running against the same data directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(vocabCmd, encodeCmd, rankCmd, trainingCmd, schemaCmd)
}

// loadConfig reads the config and sends logs to stderr so stdout carries
// only command output.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetupWriter(os.Stderr, logLevel, "text")
	return cfg, nil
}

func openStore(cfg *config.Config) (cachestore.Store, io.Closer, error) {
	store, closer, err := pipeline.OpenStore(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache store %s: %w", cfg.Cache.DataDir, err)
	}
	return store, closer, nil
}
