package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
	"github.com/josh-kwaku/qmoney-payment/internal/repository"
)

func openDB(ctx context.Context) (*sql.DB, error) {
	logging.Init("paymentctl", logLevel, "development")

	if databaseURL == "" {
		return nil, errors.New("database url required: set --database-url or DATABASE_URL")
	}
	return repository.NewPostgresDB(ctx, databaseURL, repository.PoolConfig{
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
}
