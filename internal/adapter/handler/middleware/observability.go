package middleware

import (
	"net/http"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/observability"
)

// Observability records HTTP request metrics.
func Observability(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			metrics.HTTPRequestsActive.Add(ctx, 1)
			defer metrics.HTTPRequestsActive.Add(ctx, -1)

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			metrics.RecordHTTPRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		})
	}
}
