package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/qmoney-payment/internal/auth"
	"github.com/josh-kwaku/qmoney-payment/internal/handler"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

const testSecret = "middleware-test-secret"

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(actor))
	})
}

func TestAuth(t *testing.T) {
	valid, err := auth.GenerateToken("agent-7", "Agent Seven", testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateToken("agent-7", "", testSecret, -time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken("agent-7", "", "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
		wantActor  string
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantActor: "agent-7"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantCode: "MISSING_TOKEN"},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "signed with another secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			Auth(testSecret)(actorEcho()).ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantCode == "" {
				assert.Equal(t, tc.wantActor, rr.Body.String())
				return
			}
			var resp handler.APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

func TestTracing(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rr := httptest.NewRecorder()

		Tracing(next).ServeHTTP(rr, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()

		Tracing(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})
}

func captureDefaultLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestTracing_SeedsRequestLogger(t *testing.T) {
	buf := captureDefaultLog(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-456")

	Tracing(next).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "inside handler", line["msg"])
	assert.Equal(t, "req-456", line["request_id"])
}

func TestRecovery(t *testing.T) {
	token, err := auth.GenerateToken("agent-7", "", testSecret, time.Hour)
	require.NoError(t, err)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/payments/{id}/proceed", Auth(testSecret)(panicking))
	mux.Handle("GET /boom", panicking)
	h := Tracing(Recovery(Logging(mux)))

	tests := []struct {
		name          string
		method        string
		path          string
		authorize     bool
		wantPaymentID string
		wantActor     string
	}{
		{
			name:          "payment route carries actor and payment id",
			method:        http.MethodPost,
			path:          "/api/v1/payments/6f1c2a9e-0000-4000-8000-000000000001/proceed",
			authorize:     true,
			wantPaymentID: "6f1c2a9e-0000-4000-8000-000000000001",
			wantActor:     "agent-7",
		},
		{
			name:   "other route has no payment details",
			method: http.MethodGet,
			path:   "/boom",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureDefaultLog(t)
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("X-Request-ID", "req-789")
			if tc.authorize {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			var resp handler.APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
			if tc.wantPaymentID == "" {
				assert.Nil(t, resp.Error.Details)
			} else {
				assert.Equal(t, map[string]any{"payment_id": tc.wantPaymentID}, resp.Error.Details)
			}

			var line map[string]any
			require.NoError(t, json.NewDecoder(buf).Decode(&line))
			assert.Equal(t, "panic recovered", line["msg"])
			assert.Equal(t, "req-789", line["request_id"])
			assert.Equal(t, "boom", line["panic"])
			if tc.wantActor == "" {
				assert.NotContains(t, line, "actor")
				assert.NotContains(t, line, "payment_id")
			} else {
				assert.Equal(t, tc.wantActor, line["actor"])
				assert.Equal(t, tc.wantPaymentID, line["payment_id"])
			}
		})
	}
}

func TestPaymentIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/api/v1/payments/abc/request", want: "abc"},
		{path: "/api/v1/payments/abc", want: "abc"},
		{path: "/api/v1/payments", want: ""},
		{path: "/api/v1/policies/abc/payments", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, paymentIDFromPath(tc.path))
		})
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr := httptest.NewRecorder()

	Logging(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payments/x", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
}
