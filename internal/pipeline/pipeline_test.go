package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus/corpustest"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

type recordingPublisher struct {
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Corpus.BatchSize = 5
	cfg.Vocabulary.Prefix = "test"
	cfg.Experts.NumBest = 3
	cfg.Experts.Models = []config.ExpertConfig{
		{Kind: "tfidf", Name: "tfidf"},
		{Kind: "lsi", Name: "lsi-3", NumFeatures: 3},
		{Kind: "doc2vec", Name: "doc2vec-16", NumFeatures: 16},
	}
	cfg.Search.DefaultLimit = 3
	cfg.Search.ExpertTimeout = 5 * time.Second
	return cfg
}

func TestBuildThenLoad(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := cachestore.NewMemoryStore()
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())

	built, err := Build(ctx, cfg, Options{Source: corpustest.Larger(12), Store: store, Metrics: m, Publisher: pub})
	require.NoError(t, err)
	assert.Equal(t, []string{"tfidf", "lsi-3", "doc2vec-16"}, built.Ranker.Experts())
	assert.Equal(t, 3, built.Ranker.K())
	for _, e := range built.Experts {
		assert.Equal(t, 12, e.Len())
	}

	require.Len(t, pub.events, 1)
	ev, ok := pub.events[0].Value.(events.IndexBuilt)
	require.True(t, ok)
	assert.Equal(t, "test", ev.Prefix)
	assert.Equal(t, 12, ev.Documents)
	assert.Equal(t, built.Vocabulary.Size(), ev.VocabularySize)

	writes := store.Writes()
	loaded, err := Load(ctx, cfg, store, nil)
	require.NoError(t, err)
	assert.Equal(t, writes, store.Writes())

	want, err := built.Ranker.Rank(ctx, "cheap flights to paris", 3)
	require.NoError(t, err)
	got, err := loaded.Ranker.Rank(ctx, "cheap flights to paris", 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadWithoutCacheIsMissingCorpus(t *testing.T) {
	_, err := Load(context.Background(), testConfig(t), cachestore.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, apperrors.ErrMissingCorpus)
}

func TestLoadWithVocabularyOnlyIsMissingCorpus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := cachestore.NewMemoryStore()
	_, err := Build(ctx, cfg, Options{Source: corpustest.Larger(6), Store: store})
	require.NoError(t, err)

	cfg.Experts.Models = append(cfg.Experts.Models, config.ExpertConfig{Kind: "lda", Name: "lda-4", NumFeatures: 4})
	_, err = Load(ctx, cfg, store, nil)
	assert.ErrorIs(t, err, apperrors.ErrMissingCorpus)
}

func TestUnknownExpertKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Experts.Models = []config.ExpertConfig{{Kind: "bm25", Name: "bm25"}}
	_, err := Build(context.Background(), cfg, Options{Source: corpustest.Source(), Store: cachestore.NewMemoryStore()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestExpertConfigsShareCutoffAndPrefix(t *testing.T) {
	cfg := testConfig(t)
	ecs, err := ExpertConfigs(cfg)
	require.NoError(t, err)
	require.Len(t, ecs, 3)
	for _, ec := range ecs {
		assert.Equal(t, 3, ec.NumBest)
		assert.Equal(t, "test", ec.Prefix)
	}
	assert.Equal(t, 3, ecs[1].NumFeatures)
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			store, closer, err := OpenStore(config.CacheConfig{Backend: backend, DataDir: filepath.Join(t.TempDir(), "cache")})
			require.NoError(t, err)
			require.NoError(t, store.Write("k", []byte("v")))
			ok, err := store.Exists("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.NoError(t, closer.Close())
		})
	}
}
