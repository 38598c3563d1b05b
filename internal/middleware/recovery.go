package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/josh-kwaku/qmoney-payment/internal/handler"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

const paymentsPrefix = "/api/v1/payments/"

// Recovery turns a panic into INTERNAL_ERROR. The log line carries the actor
// and the payment being operated on so a half-finished gateway exchange can
// be traced; the payment id is echoed in the error details.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			attrs := []any{"panic", rec, "method", r.Method, "path", r.URL.Path}
			if s := scopeFromContext(r.Context()); s != nil && s.actor != "" {
				attrs = append(attrs, "actor", s.actor)
			}
			paymentID := paymentIDFromPath(r.URL.Path)
			if paymentID != "" {
				attrs = append(attrs, "payment_id", paymentID)
			}
			attrs = append(attrs, "stack", string(debug.Stack()))
			logging.FromContext(r.Context()).Error("panic recovered", attrs...)

			var details any
			if paymentID != "" {
				details = map[string]string{"payment_id": paymentID}
			}
			handler.RespondAppError(w, handler.ErrInternalError, details)
		}()
		next.ServeHTTP(w, r)
	})
}

// paymentIDFromPath returns the {id} segment of a /api/v1/payments/{id}
// route. The mux fills path values on its own copy of the request, so they
// are not visible out here.
func paymentIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, paymentsPrefix)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
