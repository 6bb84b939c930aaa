// Package expert implements the retrieval experts the ensemble combines.
// Each expert owns a statistical model and a similarity index over the
// answer corpus; both are persisted in a cachestore.Store and built at most
// once per name.
package expert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// Kind selects the model family of an expert.
type Kind uint16

const (
	KindTFIDF Kind = iota + 1
	KindLSI
	KindLDA
	KindWord2Vec
	KindDoc2Vec
)

var kindNames = map[Kind]string{
	KindTFIDF:    "tfidf",
	KindLSI:      "lsi",
	KindLDA:      "lda",
	KindWord2Vec: "word2vec",
	KindDoc2Vec:  "doc2vec",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}

// ParseKind accepts the lower-case names used in configuration.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown expert kind %q: %w", s, apperrors.ErrInvalidArgument)
}

// model turns a bag of tokens into a unit-length vector in its feature
// space. Implementations are read-only after training.
type model interface {
	transform(bag encoder.Bag) Vector
}

type family struct {
	train func(c *encoder.Corpus, numFeatures int) (model, error)
	empty func() model
	// needsFeatures is false for families whose dimension comes from the
	// corpus rather than configuration.
	needsFeatures bool
}

var families = map[Kind]family{
	KindTFIDF:    {train: trainTFIDF, empty: func() model { return &tfidfModel{} }},
	KindLSI:      {train: trainLSI, empty: func() model { return &lsiModel{} }, needsFeatures: true},
	KindLDA:      {train: trainLDA, empty: func() model { return &ldaModel{} }, needsFeatures: true},
	KindWord2Vec: {train: trainWord2Vec, empty: func() model { return &word2vecModel{} }, needsFeatures: true},
	KindDoc2Vec:  {train: trainDoc2Vec, empty: func() model { return &doc2vecModel{} }, needsFeatures: true},
}

// Config identifies one expert and the shape of its index.
type Config struct {
	Kind Kind
	// Name is the cache name of the model and index files; it must be
	// unique among the experts sharing a store.
	Name string
	// Prefix is the vocabulary variant the expert was built against.
	Prefix      string
	NumFeatures int
	// NumBest caps the candidates retained per query; zero keeps all.
	NumBest int
}

func (c Config) modelKey() string { return cachestore.Key(c.Prefix, c.Name+".model") }
func (c Config) indexKey() string { return cachestore.Key(c.Prefix, c.Name+".index") }

func (c Config) validate() error {
	fam, ok := families[c.Kind]
	if !ok {
		return fmt.Errorf("expert %q: %s: %w", c.Name, c.Kind, apperrors.ErrInvalidArgument)
	}
	if c.Name == "" {
		return fmt.Errorf("expert name is empty: %w", apperrors.ErrInvalidArgument)
	}
	if err := cachestore.ValidateKey(c.indexKey()); err != nil {
		return fmt.Errorf("expert %q: %v: %w", c.Name, err, apperrors.ErrInvalidArgument)
	}
	if fam.needsFeatures && c.NumFeatures <= 0 {
		return fmt.Errorf("expert %q: %s needs a positive feature count, got %d: %w",
			c.Name, c.Kind, c.NumFeatures, apperrors.ErrInvalidArgument)
	}
	if c.NumBest < 0 {
		return fmt.Errorf("expert %q: num_best %d: %w", c.Name, c.NumBest, apperrors.ErrInvalidArgument)
	}
	return nil
}

// CorpusLoader supplies the encoded answer corpus when a build is needed.
type CorpusLoader func(ctx context.Context) (*encoder.Corpus, error)

// Expert answers top-N similarity queries against its index. It is safe for
// concurrent use.
type Expert struct {
	cfg   Config
	model model
	index *Index
}

func (e *Expert) Name() string     { return e.cfg.Name }
func (e *Expert) Kind() Kind       { return e.cfg.Kind }
func (e *Expert) NumBest() int     { return e.cfg.NumBest }
func (e *Expert) NumFeatures() int { return e.cfg.NumFeatures }
func (e *Expert) Len() int         { return e.index.Len() }

// BuildOrLoad loads the expert's model and index from store, building and
// persisting whichever is missing. The corpus is requested at most once and
// only when something has to be built. A cached index without its model is
// ErrCorruptCache; damaged or mismatched blobs are returned as errors and
// never rebuilt over.
func BuildOrLoad(ctx context.Context, store cachestore.Store, cfg Config, loadCorpus CorpusLoader) (*Expert, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "expert", "expert", cfg.Name, "kind", cfg.Kind.String())

	var corpusData *encoder.Corpus
	getCorpus := func() (*encoder.Corpus, error) {
		if corpusData != nil {
			return corpusData, nil
		}
		if loadCorpus == nil {
			return nil, fmt.Errorf("building expert %q: no corpus loader: %w", cfg.Name, apperrors.ErrMissingCorpus)
		}
		c, err := loadCorpus(ctx)
		if err != nil {
			return nil, fmt.Errorf("building expert %q: %w", cfg.Name, err)
		}
		if c.Len() == 0 {
			return nil, fmt.Errorf("building expert %q: empty corpus: %w", cfg.Name, apperrors.ErrMissingCorpus)
		}
		corpusData = c
		return c, nil
	}

	modelExists, err := store.Exists(cfg.modelKey())
	if err != nil {
		return nil, fmt.Errorf("checking model %q: %w", cfg.modelKey(), err)
	}
	indexExists, err := store.Exists(cfg.indexKey())
	if err != nil {
		return nil, fmt.Errorf("checking index %q: %w", cfg.indexKey(), err)
	}
	if indexExists && !modelExists {
		return nil, fmt.Errorf("expert %q: index %q present without model %q: %w",
			cfg.Name, cfg.indexKey(), cfg.modelKey(), apperrors.ErrCorruptCache)
	}

	var m model
	if modelExists {
		logger.Info("loading model")
		if m, err = loadModel(store, cfg); err != nil {
			return nil, err
		}
	} else {
		c, err := getCorpus()
		if err != nil {
			return nil, err
		}
		logger.Info("training model", "documents", c.Len(), "num_features", cfg.NumFeatures)
		start := time.Now()
		if m, err = families[cfg.Kind].train(c, cfg.NumFeatures); err != nil {
			return nil, fmt.Errorf("training expert %q: %w", cfg.Name, err)
		}
		if err := saveBlob(store, cfg.modelKey(), cfg, sectionModel, c.Len(), m); err != nil {
			return nil, err
		}
		logger.Info("model saved", "duration", time.Since(start))
	}

	var ix *Index
	if indexExists {
		logger.Info("loading index")
		if ix, err = loadIndex(store, cfg); err != nil {
			return nil, err
		}
	} else {
		c, err := getCorpus()
		if err != nil {
			return nil, err
		}
		start := time.Now()
		ix, err = buildIndex(ctx, m, c)
		if err != nil {
			return nil, fmt.Errorf("indexing expert %q: %w", cfg.Name, err)
		}
		if err := saveBlob(store, cfg.indexKey(), cfg, sectionIndex, ix.Len(), ix); err != nil {
			return nil, err
		}
		logger.Info("index saved", "documents", ix.Len(), "duration", time.Since(start))
	}

	return &Expert{cfg: cfg, model: m, index: ix}, nil
}

func buildIndex(ctx context.Context, m model, c *encoder.Corpus) (*Index, error) {
	ix := &Index{
		DocIDs:  make([]int64, c.Len()),
		Vectors: make([]Vector, c.Len()),
	}
	copy(ix.DocIDs, c.DocIDs)
	for i, bag := range c.Bags {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ix.Vectors[i] = m.transform(bag)
	}
	return ix, nil
}

func saveBlob(store cachestore.Store, key string, cfg Config, sec section, docCount int, payload any) error {
	data, err := encodeBlob(cfg.Kind, sec, cfg.NumFeatures, docCount, payload)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", sec, key, err)
	}
	if err := store.Write(key, data); err != nil {
		return fmt.Errorf("writing %s %q: %w", sec, key, err)
	}
	return nil
}

func readBlob(store cachestore.Store, key string) ([]byte, error) {
	data, err := store.Read(key)
	if errors.Is(err, cachestore.ErrNotFound) {
		return nil, fmt.Errorf("reading %q: %w: %w", key, err, apperrors.ErrCorruptCache)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	return data, nil
}

func loadModel(store cachestore.Store, cfg Config) (model, error) {
	data, err := readBlob(store, cfg.modelKey())
	if err != nil {
		return nil, err
	}
	m := families[cfg.Kind].empty()
	if _, err := decodeBlob(data, cfg.Kind, sectionModel, cfg.NumFeatures, m); err != nil {
		return nil, fmt.Errorf("loading model %q: %w", cfg.modelKey(), err)
	}
	return m, nil
}

func loadIndex(store cachestore.Store, cfg Config) (*Index, error) {
	data, err := readBlob(store, cfg.indexKey())
	if err != nil {
		return nil, err
	}
	ix := &Index{}
	h, err := decodeBlob(data, cfg.Kind, sectionIndex, cfg.NumFeatures, ix)
	if err != nil {
		return nil, fmt.Errorf("loading index %q: %w", cfg.indexKey(), err)
	}
	if len(ix.DocIDs) != len(ix.Vectors) || uint64(len(ix.DocIDs)) != h.DocCount {
		return nil, fmt.Errorf("loading index %q: %d ids, %d vectors, header says %d: %w",
			cfg.indexKey(), len(ix.DocIDs), len(ix.Vectors), h.DocCount, apperrors.ErrCorruptCache)
	}
	return ix, nil
}

// TopN returns at most n results for doc, sorted by descending score then
// ascending doc id. When NumBest is set, n may not exceed it.
func (e *Expert) TopN(ctx context.Context, doc encoder.Bag, n int) ([]ScoredResult, error) {
	if n < 0 {
		return nil, apperrors.Invalidf("n must not be negative, got %d", n)
	}
	if e.cfg.NumBest > 0 && n > e.cfg.NumBest {
		return nil, apperrors.Invalidf("expert %q retains %d candidates, %d requested", e.cfg.Name, e.cfg.NumBest, n)
	}
	if n == 0 {
		return []ScoredResult{}, nil
	}
	results, err := e.index.search(ctx, e.model.transform(doc), e.cfg.NumBest)
	if err != nil {
		return nil, err
	}
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}
