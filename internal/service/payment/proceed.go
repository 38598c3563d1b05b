package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// Proceed confirms a requested payment with the payer's OTP. Marking the
// payment proceeded and creating its premium commit together or not at all.
// A refused OTP leaves the payment waiting so that the payer can try again.
// As in Request, the gateway's answer is stored even if ctx is canceled
// after the call.
func (s *Service) Proceed(ctx context.Context, id uuid.UUID, otp, actor string) (Result, error) {
	log := logging.FromContext(ctx).With("payment_id", id)
	actor = actorOrSystem(actor)
	dbCtx := context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(dbCtx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("Proceed: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.GetForUpdate(dbCtx, tx, id)
	if err != nil {
		return Result{}, fmt.Errorf("Proceed: %w", err)
	}

	switch p.Status {
	case domain.PaymentStatusWaitingForConfirmation:
	case domain.PaymentStatusProceeded:
		return accepted(p.Status), nil
	case domain.PaymentStatusInitiated:
		return refused(p.Status, domain.ErrNotYetRequested,
			"The payment has not been requested. Please request it first before proceeding it."), nil
	case domain.PaymentStatusCanceled:
		return refused(p.Status, domain.ErrAlreadyCanceled, "The payment has already been canceled."), nil
	case domain.PaymentStatusFailed:
		return refused(p.Status, domain.ErrRequestFailed, "The payment request failed and cannot be proceeded."), nil
	default:
		return refused(p.Status, domain.ErrUnknownState,
			"The payment is in an unknown state and needs to be investigated."), nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("Proceed: %w", err)
	}

	t := s.transaction(p)
	detail, err := s.merchant.Proceed(ctx, t, otp)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyOTP):
			return refused(p.Status, domain.ErrEmptyOTP, "An OTP is required to proceed the payment."), nil
		case errors.Is(err, domain.ErrEmptyTransaction):
			return refused(p.Status, domain.ErrEmptyTransaction,
				"The payment has no gateway transaction to proceed. Please request it first."), nil
		}

		reason := detail
		if reason == "" {
			reason = err.Error()
		}
		if recErr := s.events.Record(dbCtx, tx, p.ID, domain.PaymentEventTypeProceedFailed, actor, map[string]any{
			"reason": reason,
		}); recErr != nil {
			return Result{}, fmt.Errorf("Proceed: %w", recErr)
		}
		if err := tx.Commit(); err != nil {
			return Result{}, fmt.Errorf("Proceed: commit: %w", err)
		}

		log.Warn("payment confirmation refused", "error", err)
		return refused(p.Status, domain.ErrProceedFailed,
			fmt.Sprintf("The payment failed due to the following reason: %s", reason)), nil
	}

	p.Status = t.State()
	if err := s.payments.UpdateStatus(dbCtx, tx, p); err != nil {
		return Result{}, fmt.Errorf("Proceed: %w", err)
	}

	premium, err := s.premiums.CreatePremiumFor(dbCtx, tx, p, actor)
	if err != nil {
		log.Error("premium creation failed after gateway confirmation",
			"transaction_id", t.TransactionID(),
			"error", err,
		)
		return Result{}, fmt.Errorf("Proceed: %w", err)
	}

	if err := s.events.Record(dbCtx, tx, p.ID, domain.PaymentEventTypeProceeded, actor, map[string]any{
		"transaction_id": t.TransactionID(),
		"premium_id":     premium.ID,
	}); err != nil {
		return Result{}, fmt.Errorf("Proceed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("Proceed: commit: %w", err)
	}

	log.Info("payment proceeded", "premium_id", premium.ID, "actor", actor)
	return accepted(p.Status), nil
}
