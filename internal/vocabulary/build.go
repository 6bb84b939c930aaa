package vocabulary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// Options controls vocabulary construction.
type Options struct {
	// Prefix namespaces the cache files so variants coexist.
	Prefix string
	// BatchSize bounds the records held in memory while streaming.
	BatchSize int
	// MaxTokens, when positive, keeps only the MaxTokens tokens with the
	// highest document frequency.
	MaxTokens int
	// LogEvery controls progress logging; zero disables it.
	LogEvery int
}

// BuildOrLoad loads the vocabulary cached under opts.Prefix, or streams src
// to build and persist it. A partially present cache is ErrCorruptCache and
// is never rebuilt over. src may be nil when the cache is known to exist.
func BuildOrLoad(ctx context.Context, src corpus.Source, store cachestore.Store, opts Options) (*Vocabulary, error) {
	logger := slog.Default().With("component", "vocabulary", "prefix", opts.Prefix)

	state, err := cacheState(store, opts.Prefix)
	if err != nil {
		return nil, err
	}
	if state == cacheComplete {
		logger.Info("loading vocabulary from cache")
		v, err := Load(store, opts.Prefix)
		if err != nil {
			return nil, err
		}
		if src != nil {
			warnIfStale(ctx, logger, src, v)
		}
		return v, nil
	}

	if src == nil {
		return nil, fmt.Errorf("building vocabulary %q: no corpus source: %w", opts.Prefix, apperrors.ErrMissingCorpus)
	}
	logger.Info("generating vocabulary", "batch_size", opts.BatchSize, "max_tokens", opts.MaxTokens)
	start := time.Now()
	v, err := Build(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if err := Save(store, v); err != nil {
		return nil, err
	}
	logger.Info("vocabulary built",
		"tokens", v.Size(),
		"categories", v.NumCategories(),
		"documents", v.NumDocs(),
		"duration", time.Since(start),
	)
	return v, nil
}

// Build streams every question and answer in src and returns an unsaved
// Vocabulary. Token ids follow first-seen order: question titles and
// contents (as separate documents) in question order, then answers.
func Build(ctx context.Context, src corpus.Source, opts Options) (*Vocabulary, error) {
	fp, err := corpus.TakeFingerprint(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting corpus: %w", err)
	}
	if fp.Questions == 0 && fp.Answers == 0 {
		return nil, fmt.Errorf("building vocabulary: corpus is empty: %w", apperrors.ErrMissingCorpus)
	}

	b := &builder{
		v:        newVocabulary(opts.Prefix),
		logEvery: opts.LogEvery,
		logger:   slog.Default().With("component", "vocabulary", "prefix", opts.Prefix),
	}
	b.v.fingerprint = fp

	processed := 0
	err = src.IterateQuestions(ctx, opts.BatchSize, func(batch []corpus.Question) error {
		for _, q := range batch {
			b.addDocument(tokenizer.Tokenize(q.Title))
			if q.Content != nil {
				b.addDocument(tokenizer.Tokenize(*q.Content))
			}
			if q.Category != nil {
				b.addCategory(*q.Category)
			}
			processed++
			b.progress("questions", processed, fp.Questions)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("streaming questions: %w", err)
	}

	processed = 0
	err = src.IterateAnswers(ctx, opts.BatchSize, func(batch []corpus.Answer) error {
		for _, a := range batch {
			b.addDocument(tokenizer.Tokenize(a.Content))
			processed++
			b.progress("answers", processed, fp.Answers)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("streaming answers: %w", err)
	}

	if opts.MaxTokens > 0 {
		b.v.limit(opts.MaxTokens)
	}
	return b.v, nil
}

type builder struct {
	v        *Vocabulary
	logEvery int
	logger   *slog.Logger
}

func (b *builder) addDocument(tokens []string) {
	v := b.v
	v.numDocs++
	seen := make(map[int]struct{}, len(tokens))
	for _, tok := range tokens {
		id, ok := v.token2id[tok]
		if !ok {
			id = len(v.tokens)
			v.token2id[tok] = id
			v.tokens = append(v.tokens, tok)
			v.docFreq = append(v.docFreq, 0)
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			v.docFreq[id]++
		}
	}
}

func (b *builder) addCategory(text string) {
	v := b.v
	if _, ok := v.category2id[text]; ok {
		return
	}
	v.categories = append(v.categories, text)
	v.category2id[text] = len(v.categories)
}

func (b *builder) progress(kind string, done, total int) {
	if b.logEvery <= 0 || done%b.logEvery != 0 {
		return
	}
	b.logger.Info("vocabulary progress",
		"kind", kind,
		"processed", done,
		"total", total,
		"unique_tokens", len(b.v.tokens),
	)
}

// limit keeps the n tokens with the highest document frequency (ties keep
// the earlier id) and renumbers them densely, preserving first-seen order.
func (v *Vocabulary) limit(n int) {
	if n >= len(v.tokens) {
		return
	}
	ranked := make([]int, len(v.tokens))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return v.docFreq[ranked[i]] > v.docFreq[ranked[j]]
	})
	kept := ranked[:n]
	sort.Ints(kept)

	tokens := make([]string, 0, n)
	docFreq := make([]int, 0, n)
	token2id := make(map[string]int, n)
	for _, oldID := range kept {
		token2id[v.tokens[oldID]] = len(tokens)
		tokens = append(tokens, v.tokens[oldID])
		docFreq = append(docFreq, v.docFreq[oldID])
	}
	v.tokens = tokens
	v.docFreq = docFreq
	v.token2id = token2id
}

func warnIfStale(ctx context.Context, logger *slog.Logger, src corpus.Source, v *Vocabulary) {
	if v.fingerprint == (corpus.Fingerprint{}) {
		return
	}
	current, err := corpus.TakeFingerprint(ctx, src)
	if err != nil {
		logger.Warn("could not fingerprint corpus, skipping staleness check", "error", err)
		return
	}
	if current != v.fingerprint {
		logger.Warn("vocabulary cache may be stale; delete the cache files to rebuild",
			"cached_questions", v.fingerprint.Questions,
			"cached_answers", v.fingerprint.Answers,
			"corpus_questions", current.Questions,
			"corpus_answers", current.Answers,
		)
	}
}
