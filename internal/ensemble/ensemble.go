// Package ensemble merges the ranked candidate lists of several retrieval
// experts into one ranking. Expert scores are not comparable across model
// families, so only each document's rank position contributes.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/encoder"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/expert"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/resilience"
)

// Expert is the part of *expert.Expert the ranker depends on.
type Expert interface {
	Name() string
	NumBest() int
	TopN(ctx context.Context, doc encoder.Bag, n int) ([]expert.ScoredResult, error)
}

// Options configures a Ranker.
type Options struct {
	// K is the common candidate cutoff every expert was built with.
	K int
	// ExpertTimeout bounds each expert lookup; zero means no bound.
	ExpertTimeout time.Duration
	Metrics       *metrics.Metrics
}

// Ranked is one document of the merged ranking with its accumulated
// contribution.
type Ranked struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// Ranker is read-only after construction and safe for concurrent use.
type Ranker struct {
	enc     *encoder.Encoder
	experts []Expert
	opts    Options
	logger  *slog.Logger
}

// New checks that every expert retains exactly K candidates.
func New(enc *encoder.Encoder, experts []Expert, opts Options) (*Ranker, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("ensemble cutoff K=%d: %w", opts.K, apperrors.ErrInvalidArgument)
	}
	if len(experts) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one expert: %w", apperrors.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(experts))
	for _, e := range experts {
		if e.NumBest() != opts.K {
			return nil, fmt.Errorf("expert %q retains %d candidates, ensemble uses K=%d: %w",
				e.Name(), e.NumBest(), opts.K, apperrors.ErrInvalidArgument)
		}
		if seen[e.Name()] {
			return nil, fmt.Errorf("duplicate expert %q: %w", e.Name(), apperrors.ErrInvalidArgument)
		}
		seen[e.Name()] = true
	}
	return &Ranker{
		enc:     enc,
		experts: experts,
		opts:    opts,
		logger:  slog.Default().With("component", "ensemble"),
	}, nil
}

func (r *Ranker) K() int { return r.opts.K }

// Experts lists expert names in configuration order.
func (r *Ranker) Experts() []string {
	names := make([]string, len(r.experts))
	for i, e := range r.experts {
		names[i] = e.Name()
	}
	return names
}

func (r *Ranker) Encoder() *encoder.Encoder { return r.enc }

// Rank returns the ids of the n merged documents. See RankScored.
func (r *Ranker) Rank(ctx context.Context, query string, n int) ([]int64, error) {
	ranked, err := r.RankScored(ctx, query, n)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(ranked))
	for i, d := range ranked {
		ids[i] = d.DocID
	}
	return ids, nil
}

// RankScored encodes query once, asks every expert for its top K in
// parallel and credits each returned document with (K-rank)^1.5 per expert.
// It returns the n documents with the LOWEST accumulated score, ascending,
// ties broken by ascending doc id. Selecting the lowest totals inverts the
// apparent intent of the weighting and awaits product confirmation.
func (r *Ranker) RankScored(ctx context.Context, query string, n int) ([]Ranked, error) {
	if n < 0 || n > r.opts.K {
		return nil, apperrors.Invalidf("n must be within [0, %d], got %d", r.opts.K, n)
	}
	if n == 0 {
		return []Ranked{}, nil
	}
	bag := r.enc.EncodeBOWString(query)

	lists := make([][]expert.ScoredResult, len(r.experts))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range r.experts {
		g.Go(func() error {
			start := time.Now()
			results, err := resilience.Call(gctx, r.opts.ExpertTimeout, "expert "+e.Name(),
				func(ctx context.Context) ([]expert.ScoredResult, error) {
					return e.TopN(ctx, bag, r.opts.K)
				})
			r.opts.Metrics.ObserveExpert(e.Name(), time.Since(start), err)
			if err != nil {
				return fmt.Errorf("expert %q: %w", e.Name(), err)
			}
			if len(results) > r.opts.K {
				return fmt.Errorf("expert %q returned %d results, cutoff is %d: %w",
					e.Name(), len(results), r.opts.K, apperrors.ErrInternal)
			}
			lists[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.FromContext(ctx).Warn("rank failed", "error", err)
		return nil, err
	}

	ranked := Aggregate(lists, r.opts.K)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// Contribution is the credit a document earns at 0-based position rank of a
// list cut at k.
func Contribution(k, rank int) float64 {
	return math.Pow(float64(k-rank), 1.5)
}

// Aggregate sums each document's contributions across lists, each already
// sorted best first, and orders the totals ascending with ties by doc id.
func Aggregate(lists [][]expert.ScoredResult, k int) []Ranked {
	totals := make(map[int64]float64)
	for _, list := range lists {
		for rank, res := range list {
			totals[res.DocID] += Contribution(k, rank)
		}
	}
	out := make([]Ranked, 0, len(totals))
	for id, score := range totals {
		out = append(out, Ranked{DocID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}
