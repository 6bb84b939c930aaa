package vocabulary

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus/corpustest"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

func strp(s string) *string { return &s }

func buildFixture(t *testing.T, store cachestore.Store, opts Options) *Vocabulary {
	t.Helper()
	if opts.BatchSize == 0 {
		opts.BatchSize = 3
	}
	v, err := BuildOrLoad(context.Background(), corpustest.Source(), store, opts)
	require.NoError(t, err)
	return v
}

func TestBuildAssignsFirstSeenIDs(t *testing.T) {
	v := buildFixture(t, cachestore.NewMemoryStore(), Options{})

	assert.Equal(t, 29, v.Size())
	assert.Equal(t, 10, v.NumDocs())
	assert.Equal(t, 0, v.TokenToID("how"))
	assert.Equal(t, 2, v.TokenToID("magnets"))
	assert.Equal(t, 4, v.TokenToID("i"))
	assert.Equal(t, 18, v.TokenToID("by"))
	assert.Equal(t, 28, v.TokenToID("early"))
	assert.Equal(t, "magnets", v.IDToToken(2))
	assert.Equal(t, 3, v.DocFreq(v.TokenToID("magnets")))
	assert.Equal(t, 3, v.DocFreq(v.TokenToID("the")))
}

func TestUnknownFallbacks(t *testing.T) {
	v := buildFixture(t, cachestore.NewMemoryStore(), Options{})

	assert.Equal(t, 29, v.UnknownTokenID())
	assert.Equal(t, 30, v.PadID())
	assert.Equal(t, v.UnknownTokenID(), v.TokenToID("zeppelin"))
	assert.Equal(t, v.UnknownTokenID(), v.TokenToID("Magnets"), "lookups are case-sensitive; tokens are pre-lowered")
	assert.Equal(t, UnknownToken, v.IDToToken(v.UnknownTokenID()))
	assert.Equal(t, UnknownToken, v.IDToToken(-1))

	assert.Equal(t, 2, v.NumCategories())
	assert.Equal(t, 1, v.CategoryToID(strp("Science")))
	assert.Equal(t, 2, v.CategoryToID(strp("Travel")))
	assert.Equal(t, 3, v.UnknownCategoryID())
	assert.Equal(t, 3, v.CategoryToID(nil))
	assert.Equal(t, 3, v.CategoryToID(strp("Gardening")))
	assert.Equal(t, "Travel", v.IDToCategory(2))
	assert.Equal(t, UnknownCategory, v.IDToCategory(0))
	assert.Equal(t, UnknownCategory, v.IDToCategory(3))
}

func TestIDDensity(t *testing.T) {
	v := buildFixture(t, cachestore.NewMemoryStore(), Options{})
	inputs := []string{"how", "blue", "", "UNKNOWN_TOKEN", "zzz", "early", "ß"}
	for _, in := range inputs {
		id := v.TokenToID(in)
		assert.GreaterOrEqual(t, id, 0)
		assert.LessOrEqual(t, id, v.Size())
		cat := v.CategoryToID(strp(in))
		assert.GreaterOrEqual(t, cat, 1)
		assert.LessOrEqual(t, cat, v.NumCategories()+1)
	}
}

func TestRoundTripThroughFileStore(t *testing.T) {
	store, err := cachestore.NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	built := buildFixture(t, store, Options{Prefix: "full"})

	loaded, err := Load(store, "full")
	require.NoError(t, err)

	assert.Equal(t, built.Size(), loaded.Size())
	assert.Equal(t, built.NumDocs(), loaded.NumDocs())
	for id := 0; id < built.Size(); id++ {
		tok := built.IDToToken(id)
		assert.Equal(t, id, loaded.TokenToID(tok))
		assert.Equal(t, built.DocFreq(id), loaded.DocFreq(id))
	}
	assert.Equal(t, built.TokenToID("nope"), loaded.TokenToID("nope"))
	for _, c := range []*string{strp("Science"), strp("Travel"), strp("Other"), nil} {
		assert.Equal(t, built.CategoryToID(c), loaded.CategoryToID(c))
	}
	assert.Equal(t, corpus.Fingerprint{Questions: 4, Answers: 4}, loaded.Fingerprint())
}

func TestBuildOrLoadBuildsOnce(t *testing.T) {
	store := cachestore.NewMemoryStore()
	buildFixture(t, store, Options{})
	writes := store.Writes()
	require.Equal(t, 4, writes)

	v, err := BuildOrLoad(context.Background(), nil, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 29, v.Size())
	assert.Equal(t, writes, store.Writes())
}

func TestRebuildIsIdempotent(t *testing.T) {
	a := buildFixture(t, cachestore.NewMemoryStore(), Options{BatchSize: 1})
	b := buildFixture(t, cachestore.NewMemoryStore(), Options{BatchSize: 100})
	require.Equal(t, a.Size(), b.Size())
	for id := 0; id < a.Size(); id++ {
		assert.Equal(t, a.IDToToken(id), b.IDToToken(id))
	}
}

func TestPrefixesCoexist(t *testing.T) {
	store := cachestore.NewMemoryStore()
	full := buildFixture(t, store, Options{})
	small := buildFixture(t, store, Options{Prefix: "v4", MaxTokens: 4})

	assert.Equal(t, 29, full.Size())
	assert.Equal(t, 4, small.Size())

	reloaded, err := Load(store, "")
	require.NoError(t, err)
	assert.Equal(t, 29, reloaded.Size())
}

func TestMaxTokensKeepsMostFrequent(t *testing.T) {
	v := buildFixture(t, cachestore.NewMemoryStore(), Options{Prefix: "v4", MaxTokens: 4})

	assert.Equal(t, 0, v.TokenToID("magnets"))
	assert.Equal(t, 1, v.TokenToID("work"))
	assert.Equal(t, 2, v.TokenToID("pizza"))
	assert.Equal(t, 3, v.TokenToID("the"))
	assert.Equal(t, 4, v.UnknownTokenID())
	assert.Equal(t, 4, v.TokenToID("sky"))
}

func TestPartialCacheIsCorrupt(t *testing.T) {
	store := cachestore.NewMemoryStore()
	buildFixture(t, store, Options{})
	require.NoError(t, store.Delete(cachestore.Key("", id2tokenFile)))

	_, err := BuildOrLoad(context.Background(), corpustest.Source(), store, Options{BatchSize: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptCache)
}

func TestUnreadableCacheIsCorrupt(t *testing.T) {
	store := cachestore.NewMemoryStore()
	buildFixture(t, store, Options{})
	require.NoError(t, store.Write(cachestore.Key("", categoriesFile), []byte("{not json")))

	_, err := Load(store, "")
	assert.ErrorIs(t, err, apperrors.ErrCorruptCache)
}

func TestInconsistentReverseMapIsCorrupt(t *testing.T) {
	store := cachestore.NewMemoryStore()
	buildFixture(t, store, Options{})
	require.NoError(t, store.Write(cachestore.Key("", id2tokenFile), []byte(`{"0":"why"}`)))

	_, err := Load(store, "")
	assert.ErrorIs(t, err, apperrors.ErrCorruptCache)
}

func TestMissingCorpus(t *testing.T) {
	_, err := BuildOrLoad(context.Background(), nil, cachestore.NewMemoryStore(), Options{BatchSize: 10})
	assert.ErrorIs(t, err, apperrors.ErrMissingCorpus)

	empty := corpus.NewMemorySource(nil, nil)
	_, err = BuildOrLoad(context.Background(), empty, cachestore.NewMemoryStore(), Options{BatchSize: 10})
	assert.ErrorIs(t, err, apperrors.ErrMissingCorpus)
}
