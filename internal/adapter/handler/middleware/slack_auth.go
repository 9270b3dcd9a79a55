package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// SignatureVerifier checks a webhook signature against the raw body.
type SignatureVerifier interface {
	Verify(timestamp, signature string, body []byte) error
}

// SlackAuth verifies the platform's request signature before the handler
// runs. The body is buffered and restored so the handler still reads it.
func SlackAuth(verifier SignatureVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("failed to read request body", "error", err)
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body.Close()

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")
			if err := verifier.Verify(timestamp, signature, body); err != nil {
				logger.Warn("invalid request signature",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
