package qmoney

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

var ErrNotInitiated = errors.New("qmoney: transaction is not in initiated state")

// Transaction is one payer to merchant transfer. It starts INITIATED, moves to
// WAITING_FOR_CONFIRMATION once the gateway has sent the payer an OTP, and ends
// PROCEEDED, FAILED or CANCELED.
type Transaction struct {
	gateway       Gateway
	merchant      *Merchant
	payer         string
	amount        int64
	transactionID string
	state         domain.PaymentStatus
	lastErr       error
}

func NewTransaction(gw Gateway, m *Merchant, payer string, amount int64) *Transaction {
	return &Transaction{
		gateway:  gw,
		merchant: m,
		payer:    payer,
		amount:   amount,
		state:    domain.PaymentStatusInitiated,
	}
}

// RestoreTransaction rebuilds a transaction from a persisted status (code or
// name) and gateway transaction id. Unrecognised statuses restore as UNKNOWN.
func RestoreTransaction(gw Gateway, m *Merchant, payer string, amount int64, status string, transactionID *string) *Transaction {
	t := NewTransaction(gw, m, payer, amount)
	t.state = domain.ParsePaymentStatus(status)
	if transactionID != nil {
		t.transactionID = *transactionID
	}
	return t
}

func (t *Transaction) State() domain.PaymentStatus { return t.state }
func (t *Transaction) TransactionID() string       { return t.transactionID }
func (t *Transaction) Payer() string               { return t.payer }
func (t *Transaction) Amount() int64               { return t.amount }
func (t *Transaction) Merchant() *Merchant         { return t.merchant }

// Err returns the gateway error behind the last failed transition, if any.
func (t *Transaction) Err() error { return t.lastErr }

// RequestOTP asks the gateway to start the transfer. The transaction moves to
// WAITING_FOR_CONFIRMATION on success and FAILED otherwise.
func (t *Transaction) RequestOTP(ctx context.Context) error {
	if t.state != domain.PaymentStatusInitiated {
		return fmt.Errorf("RequestOTP: %w (state %s)", ErrNotInitiated, t.state)
	}

	id, err := t.gateway.GetMoney(ctx, t.payer, t.merchant.WalletID, t.amount, t.merchant.PinCode)
	if err != nil {
		t.state = domain.PaymentStatusFailed
		t.lastErr = err
		return fmt.Errorf("RequestOTP: %w", err)
	}

	t.transactionID = id
	t.state = domain.PaymentStatusWaitingForConfirmation
	t.lastErr = nil
	return nil
}

// Proceed confirms the transfer with the payer's OTP. The returned detail is
// the gateway's answer and is set whenever the gateway was reached.
func (t *Transaction) Proceed(ctx context.Context, otp string) (string, error) {
	if t.transactionID == "" {
		return "", fmt.Errorf("Proceed: %w", domain.ErrEmptyTransaction)
	}
	if otp == "" {
		return "", fmt.Errorf("Proceed: %w", domain.ErrEmptyOTP)
	}
	if t.state != domain.PaymentStatusWaitingForConfirmation {
		return "", fmt.Errorf("Proceed: %w: cannot proceed from %s", domain.ErrInvalidTransition, t.state)
	}

	detail, err := t.gateway.VerifyCode(ctx, t.transactionID, otp)
	if err != nil {
		t.state = domain.PaymentStatusFailed
		t.lastErr = err
		return detail, fmt.Errorf("Proceed: %w", err)
	}

	t.state = domain.PaymentStatusProceeded
	t.lastErr = nil
	return detail, nil
}

func (t *Transaction) Cancel() error {
	if t.state == domain.PaymentStatusProceeded {
		return fmt.Errorf("Cancel: %w", domain.ErrAlreadyProceeded)
	}
	t.state = domain.PaymentStatusCanceled
	return nil
}
