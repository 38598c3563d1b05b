package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

type CreateRequest struct {
	PolicyID    *uuid.UUID
	PayerWallet string
	Amount      int64
	Actor       string
}

func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.PayerWallet) == "" {
		return fmt.Errorf("validateCreate: payer wallet required: %w", domain.ErrInvalidRequest)
	}
	if req.Amount < 0 {
		return fmt.Errorf("validateCreate: %w", domain.ErrInvalidAmount)
	}
	return nil
}

// Create stores a new INITIATED payment. It fails with
// domain.ErrMaxOutstanding when the policy already has as many outstanding
// payments as allowed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if err := validateCreate(req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		PolicyID:    req.PolicyID,
		PayerWallet: strings.TrimSpace(req.PayerWallet),
		Amount:      req.Amount,
		Status:      domain.PaymentStatusInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := s.events.Record(ctx, tx, p.ID, domain.PaymentEventTypeCreated, actorOrSystem(req.Actor), map[string]any{
		"payer_wallet": p.PayerWallet,
		"amount":       p.Amount,
	}); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	log.Info("payment created",
		"payment_id", p.ID,
		"policy_id", p.PolicyID,
		"amount", p.Amount,
	)
	return p, nil
}

// RequestPayment creates a payment and immediately requests it from the
// gateway. The stored payment is returned alongside the request outcome.
func (s *Service) RequestPayment(ctx context.Context, req CreateRequest) (*domain.Payment, Result, error) {
	p, err := s.Create(ctx, req)
	if err != nil {
		return nil, Result{}, fmt.Errorf("RequestPayment: %w", err)
	}

	res, err := s.Request(ctx, p.ID, req.Actor)
	if err != nil {
		return nil, Result{}, fmt.Errorf("RequestPayment: %w", err)
	}

	current, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, Result{}, fmt.Errorf("RequestPayment: %w", err)
	}
	return current, res, nil
}
