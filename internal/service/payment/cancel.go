package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// Cancel abandons a payment that has not been proceeded, freeing its slot in
// the policy's outstanding transactions.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("Cancel: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Result{}, fmt.Errorf("Cancel: %w", err)
	}
	if p.Status == domain.PaymentStatusCanceled {
		return accepted(p.Status), nil
	}

	t := s.transaction(p)
	if err := t.Cancel(); err != nil {
		return refused(p.Status, domain.ErrAlreadyProceeded, "The payment has already been proceeded."), nil
	}

	previous := p.Status
	p.Status = t.State()
	if err := s.payments.UpdateStatus(ctx, tx, p); err != nil {
		return Result{}, fmt.Errorf("Cancel: %w", err)
	}
	if err := s.events.Record(ctx, tx, p.ID, domain.PaymentEventTypeCanceled, actorOrSystem(actor), map[string]any{
		"previous_status": previous.String(),
	}); err != nil {
		return Result{}, fmt.Errorf("Cancel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("Cancel: commit: %w", err)
	}

	logging.FromContext(ctx).Info("payment canceled", "payment_id", p.ID, "previous_status", previous.String())
	return accepted(p.Status), nil
}
