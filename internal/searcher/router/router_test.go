package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/ensemble"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/middleware"
)

type stubRanker struct{}

func (stubRanker) K() int            { return 3 }
func (stubRanker) Experts() []string { return []string{"tfidf"} }

func (stubRanker) RankScored(_ context.Context, _ string, n int) ([]ensemble.Ranked, error) {
	return make([]ensemble.Ranked, n), nil
}

type denyAfter struct{ left int }

func (d *denyAfter) Allow(string) bool {
	d.left--
	return d.left >= 0
}

func (d *denyAfter) RetryAfter(string) time.Duration { return time.Second }

func newRouter(t *testing.T, limiter middleware.Limiter) http.Handler {
	t.Helper()
	h := handler.New(nil, nil, 2)
	checker := health.NewChecker()
	checker.Register("ranker", health.ReadyCheck(h.Ready, ""))
	h.SetRanker(stubRanker{})
	return New(h, checker, Options{Limiter: limiter, Timeout: time.Second, CORSOrigins: []string{"*"}})
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	r := newRouter(t, nil)

	rec := serve(r, http.MethodGet, "/api/v1/rank?q=pizza")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/experts").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/cache/stats").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodPost, "/api/v1/cache/invalidate").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health/live").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health/ready").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPost, "/api/v1/rank").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/search").Code)
}

func TestRateLimitSparesHealth(t *testing.T) {
	r := newRouter(t, &denyAfter{left: 1})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/rank?q=pizza").Code)
	rec := serve(r, http.MethodGet, "/api/v1/rank?q=pizza")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health/live").Code)
}
