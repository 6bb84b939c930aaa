// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Vocabulary, Experts, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Cache      CacheConfig      `yaml:"cache"`
	Encoding   EncodingConfig   `yaml:"encoding"`
	Experts    ExpertsConfig    `yaml:"experts"`
	Search     SearchConfig     `yaml:"search"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds connection parameters for the Q/A corpus database.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables index events.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
	RankEvents    string `yaml:"rankEvents"`
}

// RedisConfig holds Redis connection and rank-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CorpusConfig controls how the corpus source is streamed.
type CorpusConfig struct {
	BatchSize int `yaml:"batchSize"`
	LogEvery  int `yaml:"logEvery"`
}

// VocabularyConfig selects the vocabulary variant. MaxTokens of zero keeps
// every token; a positive value builds a size-limited variant, which should
// use its own prefix.
type VocabularyConfig struct {
	Prefix    string `yaml:"prefix"`
	MaxTokens int    `yaml:"maxTokens"`
}

// CacheConfig selects the on-disk cache backend ("file" or "badger").
type CacheConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"dataDir"`
}

// EncodingConfig holds the fixed sequence lengths used for training sets.
type EncodingConfig struct {
	QuestionLength int    `yaml:"questionLength"`
	AnswerLength   int    `yaml:"answerLength"`
	Padding        string `yaml:"padding"`
}

// ExpertsConfig lists the retrieval experts taking part in the ensemble.
// NumBest is the common cutoff K every expert is built with.
type ExpertsConfig struct {
	NumBest int            `yaml:"numBest"`
	Models  []ExpertConfig `yaml:"models"`
}

// ExpertConfig describes one expert. Changing NumFeatures requires a new
// Name, since cached indices are keyed by name.
type ExpertConfig struct {
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	NumFeatures int    `yaml:"numFeatures"`
}

// SearchConfig controls query limits and per-expert deadlines. RateLimit is
// the number of rank requests each client may make per RateWindow; zero
// disables limiting. CORSOrigins lists browser origins allowed to call the
// API ("*" for any); empty disables CORS headers.
type SearchConfig struct {
	DefaultLimit  int           `yaml:"defaultLimit"`
	ExpertTimeout time.Duration `yaml:"expertTimeout"`
	RateLimit     int           `yaml:"rateLimit"`
	RateWindow    time.Duration `yaml:"rateWindow"`
	CORSOrigins   []string      `yaml:"corsOrigins"`
}

// AnalyticsConfig controls rank-event collection and aggregation.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	ConsumerGroup    string        `yaml:"consumerGroup"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Corpus.BatchSize <= 0 {
		return fmt.Errorf("corpus.batchSize must be positive, got %d", c.Corpus.BatchSize)
	}
	if c.Experts.NumBest <= 0 {
		return fmt.Errorf("experts.numBest must be positive, got %d", c.Experts.NumBest)
	}
	if c.Search.DefaultLimit < 0 {
		return fmt.Errorf("search.defaultLimit must not be negative, got %d", c.Search.DefaultLimit)
	}
	if c.Search.DefaultLimit > c.Experts.NumBest {
		return fmt.Errorf("search.defaultLimit %d exceeds experts.numBest %d",
			c.Search.DefaultLimit, c.Experts.NumBest)
	}
	if len(c.Experts.Models) == 0 {
		return fmt.Errorf("experts.models must list at least one expert")
	}
	seen := make(map[string]struct{}, len(c.Experts.Models))
	for _, m := range c.Experts.Models {
		if m.Name == "" {
			return fmt.Errorf("expert of kind %q has no name", m.Kind)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate expert name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if c.Search.RateLimit < 0 {
		return fmt.Errorf("search.rateLimit must not be negative, got %d", c.Search.RateLimit)
	}
	if c.Search.RateLimit > 0 && c.Search.RateWindow <= 0 {
		return fmt.Errorf("search.rateWindow must be positive when rateLimit is set")
	}
	if c.Analytics.Enabled && c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive")
	}
	switch c.Cache.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development. The
// sequence lengths follow the corpus column widths (title 140 + content 1500
// for questions, 10000 for answers).
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "qacorpus",
			User:            "qacorpus",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "qa-searcher",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
				RankEvents:    "rank.events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Corpus: CorpusConfig{
			BatchSize: 100,
			LogEvery:  10000,
		},
		Cache: CacheConfig{
			Backend: "file",
			DataDir: "data",
		},
		Encoding: EncodingConfig{
			QuestionLength: 1640,
			AnswerLength:   10000,
			Padding:        "post",
		},
		Experts: ExpertsConfig{
			NumBest: 10,
			Models: []ExpertConfig{
				{Kind: "tfidf", Name: "tfidf"},
				{Kind: "lsi", Name: "lsi-200", NumFeatures: 200},
				{Kind: "lda", Name: "lda-100", NumFeatures: 100},
				{Kind: "word2vec", Name: "word2vec-100", NumFeatures: 100},
			},
		},
		Search: SearchConfig{
			DefaultLimit:  10,
			ExpertTimeout: 2 * time.Second,
			RateWindow:    time.Minute,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			ConsumerGroup:    "qa-analytics",
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads QA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QA_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QA_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("QA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("QA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("QA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QA_VOCABULARY_PREFIX"); v != "" {
		cfg.Vocabulary.Prefix = v
	}
	if v := os.Getenv("QA_VOCABULARY_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vocabulary.MaxTokens = n
		}
	}
	if v := os.Getenv("QA_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("QA_CACHE_DATA_DIR"); v != "" {
		cfg.Cache.DataDir = v
	}
	if v := os.Getenv("QA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
