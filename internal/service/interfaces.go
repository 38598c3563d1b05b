package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

type premiumRepository interface {
	Create(ctx context.Context, tx *sql.Tx, premium *domain.Premium) error
}

type policyRepository interface {
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PolicyStatus) error
}

type paymentRepository interface {
	SetPremium(ctx context.Context, tx *sql.Tx, id, premiumID uuid.UUID) error
}
