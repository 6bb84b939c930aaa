package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(key string) bool
	RetryAfter(key string) time.Duration
}

// RateLimit rejects API requests with 429 once the client, identified by
// ClientIP, has used up its allowance. Health endpoints are exempt.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			key := ClientIP(r)
			if !limiter.Allow(key) {
				secs := int(math.Ceil(limiter.RetryAfter(key).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the first X-Forwarded-For hop, or the host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
