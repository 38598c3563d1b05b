package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
	"github.com/josh-kwaku/qmoney-payment/internal/qmoney/qmoneytest"
)

type mockConfig struct {
	Port        int    `env:"PORT" envDefault:"8081"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"debug"`
	Username    string `env:"QMONEY_USERNAME" envDefault:"merchant"`
	Password    string `env:"QMONEY_PASSWORD" envDefault:"secret"`
	LoginToken  string `env:"QMONEY_TOKEN" envDefault:"bG9naW4tdG9rZW4="`
	MerchantPin string `env:"QMONEY_PAYEE_PIN_CODE" envDefault:"1234"`
	OTP         string `env:"MOCK_OTP" envDefault:"000000"`
}

func main() {
	cfg, err := env.ParseAs[mockConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("mock-qmoney", cfg.LogLevel, cfg.AppEnv)

	gw := qmoneytest.New(qmoneytest.Config{
		Username:    cfg.Username,
		Password:    cfg.Password,
		LoginToken:  cfg.LoginToken,
		AccessToken: "mock-access-token",
		OTP:         cfg.OTP,
		MerchantPin: cfg.MerchantPin,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, gw),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock qmoney started", "addr", addr, "otp", cfg.OTP)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("mock qmoney request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
