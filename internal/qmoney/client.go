// Package qmoney talks to the QMoney mobile-money gateway and models a single
// payer to merchant transfer as a state machine.
package qmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

const (
	DefaultTimeout = 100 * time.Second

	serviceID   = "MOBILE_MONEY"
	productID   = "NHIA_GETMONEY"
	remarks     = "add"
	codeSuccess = "1"

	maxBodyBytes = 64 << 10
)

var (
	ErrLogin    = errors.New("qmoney: login failed")
	ErrRejected = errors.New("qmoney: request rejected")
)

// Gateway is the subset of the QMoney API used by transactions.
type Gateway interface {
	GetMoney(ctx context.Context, payerWallet, merchantWallet string, amount int64, pin string) (string, error)
	VerifyCode(ctx context.Context, transactionID, otp string) (string, error)
}

type ClientConfig struct {
	BaseURL    string
	Username   string
	Password   string
	LoginToken string
	Timeout    time.Duration
}

// Client is a QMoney gateway session. The access token obtained on first use
// is cached for the lifetime of the client.
type Client struct {
	baseURL    string
	username   string
	password   string
	loginToken string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
	loginGroup  singleflight.Group
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		loginToken: cfg.LoginToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	ResponseCode    string          `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

type loginRequest struct {
	GrantType string `json:"grantType"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type loginData struct {
	AccessToken string `json:"access_token"`
}

type walletUser struct {
	UserIdentifier string `json:"userIdentifier"`
}

type paymentLine struct {
	Amount int64 `json:"amount"`
}

type getMoneyData struct {
	FromUser       walletUser    `json:"fromUser"`
	ToUser         walletUser    `json:"toUser"`
	ServiceID      string        `json:"serviceId"`
	ProductID      string        `json:"productId"`
	Remarks        string        `json:"remarks"`
	Payment        []paymentLine `json:"payment"`
	TransactionPin string        `json:"transactionPin"`
}

type getMoneyRequest struct {
	Data getMoneyData `json:"data"`
}

type getMoneyResult struct {
	TransactionID string `json:"transactionId"`
}

type verifyCodeRequest struct {
	TransactionID string `json:"transactionId"`
	OTP           string `json:"otp"`
}

func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Login obtains an access token unless one is already cached. Concurrent
// callers share a single in-flight login, which is detached from any one
// caller's cancellation and bounded by the client timeout instead.
func (c *Client) Login(ctx context.Context) error {
	if c.LoggedIn() {
		return nil
	}

	loginCtx := context.WithoutCancel(ctx)
	ch := c.loginGroup.DoChan("login", func() (any, error) {
		if c.LoggedIn() {
			return nil, nil
		}

		status, body, err := c.post(loginCtx, "/login", "Basic "+c.loginToken, loginRequest{
			GrantType: "password",
			Username:  c.username,
			Password:  c.password,
		})
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d: %s", ErrLogin, status, truncate(body))
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrLogin, err)
		}
		var data loginData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return nil, fmt.Errorf("%w: decode data: %v", ErrLogin, err)
			}
		}
		if data.AccessToken == "" {
			return nil, fmt.Errorf("%w: no access token in response", ErrLogin)
		}

		c.mu.Lock()
		c.accessToken = data.AccessToken
		c.mu.Unlock()

		logging.FromContext(loginCtx).Info("qmoney login succeeded")
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("Login: %w", res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Login: %w", ctx.Err())
	}
}

// GetMoney asks the gateway to pull amount from the payer's wallet into the
// merchant's wallet. On success the gateway sends an OTP to the payer and the
// returned transaction id identifies the pending transfer.
func (c *Client) GetMoney(ctx context.Context, payerWallet, merchantWallet string, amount int64, pin string) (string, error) {
	if err := c.Login(ctx); err != nil {
		return "", fmt.Errorf("GetMoney: %w", err)
	}

	status, body, err := c.post(ctx, "/getMoney", "Bearer "+c.token(), getMoneyRequest{
		Data: getMoneyData{
			FromUser:       walletUser{UserIdentifier: payerWallet},
			ToUser:         walletUser{UserIdentifier: merchantWallet},
			ServiceID:      serviceID,
			ProductID:      productID,
			Remarks:        remarks,
			Payment:        []paymentLine{{Amount: amount}},
			TransactionPin: pin,
		},
	})
	if err != nil {
		return "", fmt.Errorf("GetMoney: %w", err)
	}

	env, err := c.accepted(status, body)
	if err != nil {
		return "", fmt.Errorf("GetMoney: %w", err)
	}

	var data getMoneyResult
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TransactionID == "" {
		return "", fmt.Errorf("GetMoney: %w: no transaction id in response: %s", ErrRejected, truncate(body))
	}
	return data.TransactionID, nil
}

// VerifyCode confirms a pending transfer with the OTP the payer received. The
// raw gateway response is returned as detail whether or not it succeeded.
func (c *Client) VerifyCode(ctx context.Context, transactionID, otp string) (string, error) {
	if err := c.Login(ctx); err != nil {
		return "", fmt.Errorf("VerifyCode: %w", err)
	}

	status, body, err := c.post(ctx, "/verifyCode", "Bearer "+c.token(), verifyCodeRequest{
		TransactionID: transactionID,
		OTP:           otp,
	})
	if err != nil {
		return "", fmt.Errorf("VerifyCode: %w", err)
	}

	detail := string(body)
	if _, err := c.accepted(status, body); err != nil {
		return detail, fmt.Errorf("VerifyCode: %w", err)
	}
	return detail, nil
}

// accepted reports whether the gateway accepted the call. The gateway answers
// 200 for most logical errors, so the embedded response code decides.
func (c *Client) accepted(status int, body []byte) (*envelope, error) {
	if status == http.StatusUnauthorized {
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, status, truncate(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %s", ErrRejected, truncate(body))
	}
	if env.ResponseCode != codeSuccess {
		return nil, fmt.Errorf("%w: response code %q: %s", ErrRejected, env.ResponseCode, truncate(body))
	}
	return &env, nil
}

func (c *Client) post(ctx context.Context, endpoint, authorization string, payload any) (int, []byte, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	start := time.Now()
	log.Info("qmoney request sent", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	log.Info("qmoney response received",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if endpoint != "/login" {
		log.Debug("qmoney response body", "endpoint", endpoint, "body", string(respBody))
	}

	return resp.StatusCode, respBody, nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
