package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/qmoney-payment/internal/auth"
	"github.com/josh-kwaku/qmoney-payment/internal/handler"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// Auth requires a bearer token and puts its actor on the request context
// and on the request logger.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			recordActor(r.Context(), claims.Actor)
			ctx := auth.ContextWithActor(r.Context(), claims.Actor)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("actor", claims.Actor))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
