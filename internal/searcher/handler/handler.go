// Package handler serves the rank API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/ensemble"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

// Ranker is satisfied by *ensemble.Ranker.
type Ranker interface {
	K() int
	Experts() []string
	RankScored(ctx context.Context, query string, n int) ([]ensemble.Ranked, error)
}

type rankerBox struct{ r Ranker }

// Tracker is satisfied by *analytics.Collector.
type Tracker interface {
	Track(event analytics.RankEvent)
}

// RankResponse is the body of a successful rank request.
type RankResponse struct {
	Query     string            `json:"query"`
	N         int               `json:"n"`
	Results   []ensemble.Ranked `json:"results"`
	CacheHit  bool              `json:"cache_hit"`
	LatencyMs int64             `json:"latency_ms"`
}

type Handler struct {
	ranker       atomic.Pointer[rankerBox]
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	tracker      Tracker
	logger       *slog.Logger
}

// New returns a Handler with no ranker; rank requests get 503 until
// SetRanker is called. queryCache and m may be nil.
func New(queryCache *cache.QueryCache, m *metrics.Metrics, defaultLimit int) *Handler {
	return &Handler{
		cache:        queryCache,
		metrics:      m,
		defaultLimit: defaultLimit,
		logger:       slog.Default().With("component", "rank-handler"),
	}
}

// SetRanker atomically replaces the ranker used by new requests.
func (h *Handler) SetRanker(r Ranker) {
	h.ranker.Store(&rankerBox{r: r})
}

// SetTracker installs a rank event sink. Call before serving.
func (h *Handler) SetTracker(t Tracker) {
	h.tracker = t
}

// Ready reports whether a ranker is installed.
func (h *Handler) Ready() bool {
	return h.current() != nil
}

func (h *Handler) current() Ranker {
	if b := h.ranker.Load(); b != nil {
		return b.r
	}
	return nil
}

// Rank handles GET /api/v1/rank?q=<query>&n=<count>.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ranker := h.current()
	if ranker == nil {
		h.fail(w, start, "not_ready", apperrors.ErrNotReady)
		return
	}

	query := r.URL.Query().Get("q")
	n := h.defaultLimit
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil {
			h.fail(w, start, "invalid", apperrors.Invalidf("n must be an integer, got %q", nStr))
			return
		}
		n = parsed
	}
	if n < 0 || n > ranker.K() {
		h.fail(w, start, "invalid", apperrors.Invalidf("n must be within [0, %d], got %d", ranker.K(), n))
		return
	}

	var results []ensemble.Ranked
	var err error
	cacheHit := false
	compute := func(ctx context.Context) ([]ensemble.Ranked, error) {
		return ranker.RankScored(ctx, query, n)
	}
	if h.cache != nil && n > 0 {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, query, n, compute)
	} else {
		results, err = compute(ctx)
	}
	if err != nil {
		log.Error("rank failed", "query", query, "n", n, "error", err)
		h.track(ctx, ranker, analytics.RankEvent{Query: query, N: n, Error: err.Error()}, start)
		h.fail(w, start, resultType(err), err)
		return
	}

	latency := time.Since(start)
	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	h.metrics.ObserveRank(outcome, cacheStatus(h.cache != nil, cacheHit), len(results), latency)
	h.track(ctx, ranker, analytics.RankEvent{Query: query, N: n, Returned: len(results), CacheHit: cacheHit}, start)
	log.Info("rank completed",
		"query", query,
		"n", n,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, RankResponse{
		Query:     query,
		N:         n,
		Results:   results,
		CacheHit:  cacheHit,
		LatencyMs: latency.Milliseconds(),
	})
}

// Experts handles GET /api/v1/experts.
func (h *Handler) Experts(w http.ResponseWriter, r *http.Request) {
	ranker := h.current()
	if ranker == nil {
		h.writeError(w, apperrors.ErrNotReady)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"experts": ranker.Experts(),
		"k":       ranker.K(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	breaker := h.cache.BreakerCounts()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             hits,
		"misses":           misses,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
		"breaker":          breaker.State.String(),
		"breaker_failures": breaker.TotalFailures,
		"breaker_rejected": breaker.Rejected,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(ctx context.Context, ranker Ranker, event analytics.RankEvent, start time.Time) {
	if h.tracker == nil {
		return
	}
	event.Experts = ranker.Experts()
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(ctx)
	h.tracker.Track(event)
}

func (h *Handler) fail(w http.ResponseWriter, start time.Time, outcome string, err error) {
	h.metrics.ObserveRank(outcome, "none", 0, time.Since(start))
	h.writeError(w, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Internal failures are not echoed
// to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "rank failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func resultType(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func cacheStatus(enabled, hit bool) string {
	switch {
	case !enabled:
		return "disabled"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}
