package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// PremiumService records the premium paid by a proceeded payment directly in
// the premiums table and activates the policy it covers.
type PremiumService struct {
	premiums premiumRepository
	policies policyRepository
	payments paymentRepository
	now      func() time.Time
}

func NewPremiumService(premiums premiumRepository, policies policyRepository, payments paymentRepository) *PremiumService {
	return &PremiumService{
		premiums: premiums,
		policies: policies,
		payments: payments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePremiumFor must run in the same transaction that marked the payment
// proceeded.
func (s *PremiumService) CreatePremiumFor(ctx context.Context, tx *sql.Tx, payment *domain.Payment, actor string) (*domain.Premium, error) {
	if payment.Status != domain.PaymentStatusProceeded {
		return nil, fmt.Errorf("CreatePremiumFor: %w", domain.ErrNotProceeded)
	}
	if payment.PolicyID == nil {
		return nil, fmt.Errorf("CreatePremiumFor: %w", domain.ErrMissingPolicy)
	}

	now := s.now()
	premium := &domain.Premium{
		ID:        uuid.New(),
		PolicyID:  *payment.PolicyID,
		Amount:    decimal.NewFromInt(payment.Amount),
		Receipt:   payment.ID.String(),
		PayType:   domain.PremiumPayTypeMobile,
		PayDate:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		IsOffline: false,
		CreatedBy: actor,
		CreatedAt: now,
	}

	if err := s.premiums.Create(ctx, tx, premium); err != nil {
		return nil, fmt.Errorf("CreatePremiumFor: %w", err)
	}
	if err := s.policies.UpdateStatus(ctx, tx, premium.PolicyID, domain.PolicyStatusActive); err != nil {
		return nil, fmt.Errorf("CreatePremiumFor: activate policy: %w", err)
	}
	if err := s.payments.SetPremium(ctx, tx, payment.ID, premium.ID); err != nil {
		return nil, fmt.Errorf("CreatePremiumFor: link payment: %w", err)
	}
	payment.PremiumID = &premium.ID

	logging.FromContext(ctx).Info("premium created",
		"premium_id", premium.ID,
		"payment_id", payment.ID,
		"policy_id", premium.PolicyID,
		"amount", premium.Amount.String(),
	)
	return premium, nil
}
