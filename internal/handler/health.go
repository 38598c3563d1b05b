package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type gatewaySession interface {
	LoggedIn() bool
}

type HealthHandler struct {
	db      *sql.DB
	gateway gatewaySession
}

func NewHealthHandler(db *sql.DB, gateway gatewaySession) *HealthHandler {
	return &HealthHandler{db: db, gateway: gateway}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "qmoney-payment",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness fails only on the database. The gateway session is reported but
// a missing token is normal until the first payment request logs in.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		dbStatus = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	checks := map[string]string{
		"database": dbStatus,
	}
	if h.gateway != nil {
		checks["qmoney_session"] = "none"
		if h.gateway.LoggedIn() {
			checks["qmoney_session"] = "active"
		}
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
