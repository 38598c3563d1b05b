package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestScope is shared by every layer of one request. Auth runs inside the
// mux on a derived request, so it records the actor here for the outer
// layers to read.
type requestScope struct {
	id    string
	actor string
}

type scopeKey struct{}

// Tracing assigns the request id, echoes it in the response and seeds the
// request logger with it. It must be the outermost middleware.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), scopeKey{}, &requestScope{id: id})
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scopeFromContext(ctx context.Context) *requestScope {
	s, _ := ctx.Value(scopeKey{}).(*requestScope)
	return s
}

func TraceIDFromContext(ctx context.Context) string {
	if s := scopeFromContext(ctx); s != nil {
		return s.id
	}
	return ""
}

func recordActor(ctx context.Context, actor string) {
	if s := scopeFromContext(ctx); s != nil {
		s.actor = actor
	}
}
