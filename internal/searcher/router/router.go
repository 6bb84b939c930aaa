// Package router wires the searcher's routes and middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/middleware"
)

type Options struct {
	Metrics *metrics.Metrics
	// Limiter is optional; nil disables rate limiting.
	Limiter     middleware.Limiter
	Timeout     time.Duration
	CORSOrigins []string
}

// New builds the searcher HTTP handler.
//
// Route table:
//
//	GET    /api/v1/rank             ranked doc ids for ?q=&n=
//	GET    /api/v1/experts          loaded experts and K
//	GET    /api/v1/cache/stats      rank cache counters
//	POST   /api/v1/cache/invalidate drop this prefix's cached rankings
//	GET    /health/live             liveness
//	GET    /health/ready            ranker loaded, redis reachable
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(h *handler.Handler, checker *health.Checker, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/experts", h.Experts)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(opts.Timeout)(chain)
	if opts.Limiter != nil {
		chain = middleware.RateLimit(opts.Limiter)(chain)
	}
	chain = middleware.Metrics(opts.Metrics)(chain)
	chain = middleware.CORS(middleware.RankCORSConfig(opts.CORSOrigins))(chain)
	chain = middleware.RequestID(chain)

	return chain
}
