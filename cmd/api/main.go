package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/josh-kwaku/qmoney-payment/internal/config"
	"github.com/josh-kwaku/qmoney-payment/internal/handler"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
	"github.com/josh-kwaku/qmoney-payment/internal/middleware"
	"github.com/josh-kwaku/qmoney-payment/internal/qmoney"
	"github.com/josh-kwaku/qmoney-payment/internal/repository"
	"github.com/josh-kwaku/qmoney-payment/internal/service"
	"github.com/josh-kwaku/qmoney-payment/internal/service/payment"
	"github.com/josh-kwaku/qmoney-payment/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("qmoney-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		version, err := migrations.Up(ctx, db)
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "version", version)
	}

	gateway := qmoney.NewClient(qmoney.ClientConfig{
		BaseURL:    cfg.QMoney.URL,
		Username:   cfg.QMoney.Username,
		Password:   cfg.QMoney.Password,
		LoginToken: cfg.QMoney.LoginToken,
		Timeout:    cfg.QMoney.Timeout,
	})
	merchant := qmoney.NewMerchant(cfg.QMoney.Payee, cfg.QMoney.PayeePin)

	paymentRepo := repository.NewPaymentRepository(db, cfg.MaxOutstandingTransactions)
	eventRepo := repository.NewPaymentEventRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	premiumRepo := repository.NewPremiumRepository(db)

	premiums := service.NewPremiumService(premiumRepo, policyRepo, paymentRepo)
	payments := payment.NewService(paymentRepo, eventRepo, policyRepo, premiums, gateway, merchant, db)

	healthHandler := handler.NewHealthHandler(db, gateway)
	paymentHandler := handler.NewPaymentHandler(payments)

	authed := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /ready", healthHandler.Readiness)

	mux.Handle("POST /api/v1/payments", authed(http.HandlerFunc(paymentHandler.Create)))
	mux.Handle("GET /api/v1/payments/{id}", authed(http.HandlerFunc(paymentHandler.Get)))
	mux.Handle("GET /api/v1/payments/{id}/events", authed(http.HandlerFunc(paymentHandler.Events)))
	mux.Handle("POST /api/v1/payments/{id}/request", authed(http.HandlerFunc(paymentHandler.Request)))
	mux.Handle("POST /api/v1/payments/{id}/proceed", authed(http.HandlerFunc(paymentHandler.Proceed)))
	mux.Handle("POST /api/v1/payments/{id}/cancel", authed(http.HandlerFunc(paymentHandler.Cancel)))
	mux.Handle("GET /api/v1/policies/{id}/payments", authed(http.HandlerFunc(paymentHandler.ListByPolicy)))

	var h http.Handler = mux
	h = middleware.Logging(h)
	h = middleware.Recovery(h)
	h = middleware.Tracing(h)

	// Gateway calls may take up to the QMoney timeout, so writes get headroom
	// beyond it.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.QMoney.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "max_outstanding", cfg.MaxOutstandingTransactions)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeS) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second,
	}

	var db *sql.DB
	attempt := 0
	backoff := retry.WithMaxRetries(29, retry.NewConstant(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err != nil {
			slog.Info("waiting for database", "attempt", attempt)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connectDB: gave up after %d attempts: %w", attempt, err)
	}
	return db, nil
}
