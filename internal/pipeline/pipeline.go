// Package pipeline wires vocabulary, encoder, experts and ensemble together
// from configuration. Build is the single writer of a cache store; Load
// never builds and is what query-serving processes use.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/ensemble"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/expert"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

// Options supplies the collaborators of a build.
type Options struct {
	// Source is the corpus; nil restricts the pipeline to cached artifacts.
	Source    corpus.Source
	Store     cachestore.Store
	Metrics   *metrics.Metrics
	Publisher events.Publisher
}

// Result is a ready-to-query pipeline.
type Result struct {
	Vocabulary *vocabulary.Vocabulary
	Encoder    *encoder.Encoder
	Experts    []*expert.Expert
	Ranker     *ensemble.Ranker
}

var buildMu sync.Mutex

// Build loads or builds the vocabulary and every configured expert, in
// configuration order, then assembles the ensemble. The answer corpus is
// encoded at most once and only if some expert needs building. On success
// an IndexBuilt event is published when a Publisher is set.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	buildMu.Lock()
	defer buildMu.Unlock()

	logger := slog.Default().With("component", "pipeline", "prefix", cfg.Vocabulary.Prefix)
	start := time.Now()

	expertCfgs, err := ExpertConfigs(cfg)
	if err != nil {
		return nil, err
	}

	stage := time.Now()
	vocab, err := vocabulary.BuildOrLoad(ctx, opts.Source, opts.Store, vocabulary.Options{
		Prefix:    cfg.Vocabulary.Prefix,
		BatchSize: cfg.Corpus.BatchSize,
		MaxTokens: cfg.Vocabulary.MaxTokens,
		LogEvery:  cfg.Corpus.LogEvery,
	})
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	opts.Metrics.ObserveBuild("vocabulary", time.Since(stage))
	if opts.Metrics != nil {
		opts.Metrics.VocabularySize.Set(float64(vocab.Size()))
	}
	enc := encoder.New(vocab)

	var encoded *encoder.Corpus
	var loader expert.CorpusLoader
	if opts.Source != nil {
		loader = func(ctx context.Context) (*encoder.Corpus, error) {
			if encoded != nil {
				return encoded, nil
			}
			stage := time.Now()
			c, err := enc.EncodeAnswerCorpus(ctx, opts.Source, cfg.Corpus.BatchSize)
			if err != nil {
				return nil, err
			}
			opts.Metrics.ObserveBuild("encode", time.Since(stage))
			logger.Info("answer corpus encoded", "documents", c.Len(), "duration", time.Since(stage))
			encoded = c
			return c, nil
		}
	}

	experts := make([]*expert.Expert, 0, len(expertCfgs))
	members := make([]ensemble.Expert, 0, len(expertCfgs))
	for _, ec := range expertCfgs {
		stage := time.Now()
		e, err := expert.BuildOrLoad(ctx, opts.Store, ec, loader)
		if err != nil {
			return nil, fmt.Errorf("expert %q: %w", ec.Name, err)
		}
		opts.Metrics.ObserveBuild("expert_"+ec.Kind.String(), time.Since(stage))
		if opts.Metrics != nil {
			opts.Metrics.IndexedDocuments.WithLabelValues(ec.Name).Set(float64(e.Len()))
		}
		experts = append(experts, e)
		members = append(members, e)
	}

	ranker, err := ensemble.New(enc, members, ensemble.Options{
		K:             cfg.Experts.NumBest,
		ExpertTimeout: cfg.Search.ExpertTimeout,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline ready",
		"experts", ranker.Experts(),
		"vocabulary_size", vocab.Size(),
		"duration", time.Since(start),
	)

	if opts.Publisher != nil {
		docs := 0
		if len(experts) > 0 {
			docs = experts[0].Len()
		}
		ev := events.IndexBuilt{
			Prefix:         cfg.Vocabulary.Prefix,
			Experts:        ranker.Experts(),
			Documents:      docs,
			VocabularySize: vocab.Size(),
			BuiltAt:        time.Now().UTC(),
		}
		if err := events.PublishIndexBuilt(ctx, opts.Publisher, opts.Metrics, ev); err != nil {
			return nil, err
		}
	}

	return &Result{Vocabulary: vocab, Encoder: enc, Experts: experts, Ranker: ranker}, nil
}

// Load assembles the pipeline from cached artifacts only. Anything missing
// from the store is ErrMissingCorpus.
func Load(ctx context.Context, cfg *config.Config, store cachestore.Store, m *metrics.Metrics) (*Result, error) {
	return Build(ctx, cfg, Options{Store: store, Metrics: m})
}

// ExpertConfigs translates the configured models into expert configs that
// share the ensemble cutoff and vocabulary prefix.
func ExpertConfigs(cfg *config.Config) ([]expert.Config, error) {
	out := make([]expert.Config, 0, len(cfg.Experts.Models))
	for _, m := range cfg.Experts.Models {
		kind, err := expert.ParseKind(m.Kind)
		if err != nil {
			return nil, fmt.Errorf("expert %q: %w", m.Name, err)
		}
		out = append(out, expert.Config{
			Kind:        kind,
			Name:        m.Name,
			Prefix:      cfg.Vocabulary.Prefix,
			NumFeatures: m.NumFeatures,
			NumBest:     cfg.Experts.NumBest,
		})
	}
	return out, nil
}

// OpenStore opens the configured cache backend. The returned closer must be
// called on shutdown.
func OpenStore(cfg config.CacheConfig) (cachestore.Store, io.Closer, error) {
	switch cfg.Backend {
	case "badger":
		s, err := cachestore.OpenBadgerStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := cachestore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, closerFunc(func() error { return nil }), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
