package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging writes one line per request with the logger Tracing seeded.
// Health and readiness checks are skipped.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/ready" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if s := scopeFromContext(r.Context()); s != nil && s.actor != "" {
			attrs = append(attrs, "actor", s.actor)
		}
		logging.FromContext(r.Context()).Info("request completed", attrs...)
	})
}
