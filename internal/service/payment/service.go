// Package payment runs the lifecycle of QMoney payments: creating them,
// requesting the transfer from the gateway, confirming it with the payer's OTP
// and canceling it.
package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/qmoney"
)

// SystemActor is recorded on events raised without an authenticated caller.
const SystemActor = "system"

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error)
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]domain.Payment, error)
}

type eventRepo interface {
	Record(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID, eventType domain.PaymentEventType, actor string, payload any) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error)
}

// PolicyLookup reports the current status of a policy.
type PolicyLookup interface {
	GetStatus(ctx context.Context, policyID uuid.UUID) (domain.PolicyStatus, error)
}

// PremiumCreator records the premium paid by a proceeded payment. It runs in
// the transaction that marks the payment proceeded.
type PremiumCreator interface {
	CreatePremiumFor(ctx context.Context, tx *sql.Tx, payment *domain.Payment, actor string) (*domain.Premium, error)
}

// Result is the outcome of a payment operation. Expected business refusals
// come back as a Result with OK false and Reason set; the error return is
// kept for infrastructure failures and the outstanding transaction limit.
type Result struct {
	OK      bool
	Status  domain.PaymentStatus
	Message string
	Reason  error
}

func accepted(status domain.PaymentStatus) Result {
	return Result{OK: true, Status: status}
}

func refused(status domain.PaymentStatus, reason error, message string) Result {
	return Result{Status: status, Reason: reason, Message: message}
}

type Service struct {
	payments paymentRepo
	events   eventRepo
	policies PolicyLookup
	premiums PremiumCreator
	gateway  qmoney.Gateway
	merchant *qmoney.Merchant
	db       *sql.DB
}

func NewService(
	payments paymentRepo,
	events eventRepo,
	policies PolicyLookup,
	premiums PremiumCreator,
	gateway qmoney.Gateway,
	merchant *qmoney.Merchant,
	db *sql.DB,
) *Service {
	return &Service{
		payments: payments,
		events:   events,
		policies: policies,
		premiums: premiums,
		gateway:  gateway,
		merchant: merchant,
		db:       db,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (s *Service) ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]domain.Payment, error) {
	payments, err := s.payments.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("ListByPolicy: %w", err)
	}
	return payments, nil
}

func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	if _, err := s.payments.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("Events: %w", err)
	}
	events, err := s.events.GetByPaymentID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Events: %w", err)
	}
	return events, nil
}

func (s *Service) transaction(p *domain.Payment) *qmoney.Transaction {
	return qmoney.RestoreTransaction(s.gateway, s.merchant, p.PayerWallet, p.Amount, p.Status.Code(), p.ExternalTransactionID)
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}
