package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/logger"
)

const timeoutBody = `{"error":"request timeout"}` + "\n"

// Timeout gives each request a deadline. The handler writes into a buffer;
// if it finishes in time the buffer is copied to the client, otherwise the
// client gets a 504 and whatever the handler writes later is discarded. A
// panic in the handler is re-raised on the serving goroutine.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			bw := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(bw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
				bw.flushTo(w)
			case <-ctx.Done():
				bw.abandon()
				logger.FromContext(r.Context()).Warn("request timed out",
					"method", r.Method, "path", r.URL.Path, "timeout", timeout)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write([]byte(timeoutBody))
			}
		})
	}
}

// bufferedWriter holds a handler's response until Timeout decides whether to
// send it.
type bufferedWriter struct {
	mu        sync.Mutex
	header    http.Header
	buf       bytes.Buffer
	status    int
	abandoned bool
}

func (bw *bufferedWriter) Header() http.Header { return bw.header }

func (bw *bufferedWriter) WriteHeader(code int) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if !bw.abandoned {
		bw.status = code
	}
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.abandoned {
		return 0, http.ErrHandlerTimeout
	}
	return bw.buf.Write(b)
}

func (bw *bufferedWriter) abandon() {
	bw.mu.Lock()
	bw.abandoned = true
	bw.mu.Unlock()
}

func (bw *bufferedWriter) flushTo(w http.ResponseWriter) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	dst := w.Header()
	for k, v := range bw.header {
		dst[k] = v
	}
	w.WriteHeader(bw.status)
	_, _ = w.Write(bw.buf.Bytes())
}
