// Package qmoneytest provides an in-process QMoney gateway for tests and local
// runs.
package qmoneytest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const (
	codeOK     = "1"
	codeFailed = "0"
)

type Config struct {
	Username    string
	Password    string
	LoginToken  string
	AccessToken string
	// OTP accepted by /verifyCode for every transaction.
	OTP string
	// MerchantPin, when set, must match the transactionPin of /getMoney.
	MerchantPin string
}

// DefaultConfig matches the credentials used across the test suites.
func DefaultConfig() Config {
	return Config{
		Username:    "merchant",
		Password:    "secret",
		LoginToken:  "bG9naW4tdG9rZW4=",
		AccessToken: "access-token",
		OTP:         "000000",
		MerchantPin: "1234",
	}
}

type Transfer struct {
	ID        string
	Payer     string
	Merchant  string
	Amount    int64
	Confirmed bool
}

// Gateway is a fake QMoney API implementing /login, /getMoney and /verifyCode.
type Gateway struct {
	cfg Config
	mux *http.ServeMux

	mu             sync.Mutex
	transfers      map[string]*Transfer
	seq            int
	logins         int
	getMoneyCalls  int
	verifyCalls    int
	rejectGetMoney bool
	rejectVerify   bool
}

func New(cfg Config) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		transfers: make(map[string]*Transfer),
	}
	g.mux.HandleFunc("POST /login", g.handleLogin)
	g.mux.HandleFunc("POST /getMoney", g.handleGetMoney)
	g.mux.HandleFunc("POST /verifyCode", g.handleVerifyCode)
	g.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return g
}

// Cleaner registers teardown work; *testing.T and *testing.B satisfy it.
type Cleaner interface {
	Cleanup(func())
}

// NewServer starts the gateway on a local listener closed at cleanup.
func NewServer(c Cleaner, cfg Config) (*Gateway, *httptest.Server) {
	g := New(cfg)
	srv := httptest.NewServer(g)
	c.Cleanup(srv.Close)
	return g, srv
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// RejectGetMoney makes /getMoney answer with a failed response code.
func (g *Gateway) RejectGetMoney(reject bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejectGetMoney = reject
}

// RejectVerify makes /verifyCode answer with a failed response code.
func (g *Gateway) RejectVerify(reject bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejectVerify = reject
}

func (g *Gateway) Logins() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logins
}

func (g *Gateway) GetMoneyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getMoneyCalls
}

func (g *Gateway) VerifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

func (g *Gateway) Transfer(id string) (Transfer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.transfers[id]
	if !ok {
		return Transfer{}, false
	}
	return *t, true
}

type envelope struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage,omitempty"`
	Data            any    `json:"data,omitempty"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrantType string `json:"grantType"`
		Username  string `json:"username"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{ResponseCode: codeFailed, ResponseMessage: "malformed body"})
		return
	}

	if r.Header.Get("Authorization") != "Basic "+g.cfg.LoginToken ||
		req.GrantType != "password" ||
		req.Username != g.cfg.Username ||
		req.Password != g.cfg.Password {
		writeJSON(w, http.StatusUnauthorized, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid credentials"})
		return
	}

	g.mu.Lock()
	g.logins++
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{
		ResponseCode: codeOK,
		Data:         map[string]string{"access_token": g.cfg.AccessToken},
	})
}

func (g *Gateway) handleGetMoney(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid token"})
		return
	}

	var req struct {
		Data struct {
			FromUser struct {
				UserIdentifier string `json:"userIdentifier"`
			} `json:"fromUser"`
			ToUser struct {
				UserIdentifier string `json:"userIdentifier"`
			} `json:"toUser"`
			ServiceID string `json:"serviceId"`
			ProductID string `json:"productId"`
			Remarks   string `json:"remarks"`
			Payment   []struct {
				Amount int64 `json:"amount"`
			} `json:"payment"`
			TransactionPin string `json:"transactionPin"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{ResponseCode: codeFailed, ResponseMessage: "malformed body"})
		return
	}
	d := req.Data

	g.mu.Lock()
	defer g.mu.Unlock()
	g.getMoneyCalls++

	switch {
	case g.rejectGetMoney:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "transaction declined"})
		return
	case d.ServiceID != "MOBILE_MONEY" || d.ProductID != "NHIA_GETMONEY":
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "unknown product"})
		return
	case d.FromUser.UserIdentifier == "" || d.ToUser.UserIdentifier == "" || len(d.Payment) != 1:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid transfer"})
		return
	case g.cfg.MerchantPin != "" && d.TransactionPin != g.cfg.MerchantPin:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid pin"})
		return
	}

	g.seq++
	id := fmt.Sprintf("txn_%d", g.seq)
	g.transfers[id] = &Transfer{
		ID:       id,
		Payer:    d.FromUser.UserIdentifier,
		Merchant: d.ToUser.UserIdentifier,
		Amount:   d.Payment[0].Amount,
	}
	slog.Debug("fake qmoney transfer created", "transaction_id", id, "payer", d.FromUser.UserIdentifier)

	writeJSON(w, http.StatusOK, envelope{
		ResponseCode: codeOK,
		Data:         map[string]string{"transactionId": id},
	})
}

func (g *Gateway) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid token"})
		return
	}

	var req struct {
		TransactionID string `json:"transactionId"`
		OTP           string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{ResponseCode: codeFailed, ResponseMessage: "malformed body"})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++

	t, ok := g.transfers[req.TransactionID]
	switch {
	case g.rejectVerify:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "verification declined"})
	case !ok:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "transaction not found"})
	case t.Confirmed:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "transaction already confirmed"})
	case req.OTP != g.cfg.OTP:
		writeJSON(w, http.StatusOK, envelope{ResponseCode: codeFailed, ResponseMessage: "invalid otp"})
	default:
		t.Confirmed = true
		writeJSON(w, http.StatusOK, envelope{
			ResponseCode:    codeOK,
			ResponseMessage: "transaction successful",
			Data:            map[string]string{"transactionId": t.ID},
		})
	}
}

func (g *Gateway) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == g.cfg.AccessToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write fake qmoney response", "error", err)
	}
}
