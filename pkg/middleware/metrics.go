// Package middleware provides the HTTP middleware shared by the searcher and
// analytics services: request ids, Prometheus metrics with an access log,
// timeouts, CORS and per-client rate limiting.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/metrics"
)

// Metrics records request count, latency and in-flight requests, and
// writes one debug access-log line per request. Server errors are logged at
// warn. A nil m disables recording but keeps the access log.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if m != nil {
				m.HTTPRequestsInFlight.Inc()
				defer m.HTTPRequestsInFlight.Dec()
			}

			rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)
			path := normalizePath(r.URL.Path)

			if m != nil {
				m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
			}

			log := logger.FromContext(r.Context())
			attrs := []any{
				"method", r.Method,
				"path", path,
				"status", rw.status,
				"bytes", rw.bytes,
				"duration_ms", elapsed.Milliseconds(),
			}
			if rw.status >= http.StatusInternalServerError {
				log.Warn("request failed", attrs...)
			} else {
				log.Debug("request served", attrs...)
			}
		})
	}
}

// responseRecorder captures the status code and body size.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *responseRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// normalizePath bounds the label set: API and health routes are reported
// as-is, anything else as "other".
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, "/health/") {
		return path
	}
	return "other"
}
