package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// Request asks the gateway to start the transfer of an INITIATED payment.
// The payment row stays locked until the gateway has answered and the new
// status is stored. Only the gateway call follows ctx cancellation: once the
// gateway has answered, its outcome is stored even if the caller went away.
func (s *Service) Request(ctx context.Context, id uuid.UUID, actor string) (Result, error) {
	log := logging.FromContext(ctx).With("payment_id", id)
	dbCtx := context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(dbCtx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("Request: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.GetForUpdate(dbCtx, tx, id)
	if err != nil {
		return Result{}, fmt.Errorf("Request: %w", err)
	}

	switch p.Status {
	case domain.PaymentStatusInitiated:
	case domain.PaymentStatusWaitingForConfirmation:
		return accepted(p.Status), nil
	case domain.PaymentStatusProceeded:
		return refused(p.Status, domain.ErrAlreadyProceeded, "The payment has already been proceeded."), nil
	case domain.PaymentStatusCanceled:
		return refused(p.Status, domain.ErrAlreadyCanceled, "The payment has already been canceled."), nil
	case domain.PaymentStatusFailed:
		return refused(p.Status, domain.ErrRequestFailed,
			"The payment request has already failed. Please cancel it and request a new payment."), nil
	default:
		return refused(p.Status, domain.ErrUnknownState,
			"The payment is in an unknown state and needs to be investigated."), nil
	}

	if p.PolicyID != nil {
		status, err := s.policies.GetStatus(ctx, *p.PolicyID)
		if err != nil {
			return Result{}, fmt.Errorf("Request: %w", err)
		}
		if status != domain.PolicyStatusIdle {
			log.Info("payment request refused", "policy_id", *p.PolicyID, "policy_status", status.String())
			return refused(p.Status, domain.ErrPolicyNotIdle,
				fmt.Sprintf("The Policy %s should be Idle but it is not.", *p.PolicyID)), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("Request: %w", err)
	}

	t := s.merchant.RequestPayment(ctx, s.gateway, p.PayerWallet, p.Amount)

	p.Status = t.State()
	if txID := t.TransactionID(); txID != "" {
		p.ExternalTransactionID = &txID
	}
	if err := s.payments.UpdateStatus(dbCtx, tx, p); err != nil {
		return Result{}, fmt.Errorf("Request: %w", err)
	}

	if p.Status == domain.PaymentStatusWaitingForConfirmation {
		if err := s.events.Record(dbCtx, tx, p.ID, domain.PaymentEventTypeRequested, actorOrSystem(actor), map[string]any{
			"transaction_id": t.TransactionID(),
		}); err != nil {
			return Result{}, fmt.Errorf("Request: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Result{}, fmt.Errorf("Request: commit: %w", err)
		}

		log.Info("payment requested", "transaction_id", t.TransactionID())
		return accepted(p.Status), nil
	}

	payload := map[string]any{}
	if t.Err() != nil {
		payload["error"] = t.Err().Error()
	}
	if err := s.events.Record(dbCtx, tx, p.ID, domain.PaymentEventTypeRequestFailed, actorOrSystem(actor), payload); err != nil {
		return Result{}, fmt.Errorf("Request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("Request: commit: %w", err)
	}

	log.Warn("payment request failed", "error", t.Err())
	return refused(p.Status, domain.ErrRequestFailed, "The request could not have been made."), nil
}
