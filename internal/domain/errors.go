package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrPolicyNotIdle     = errors.New("policy is not idle")
	ErrMissingPolicy     = errors.New("payment has no policy")
	ErrEmptyTransaction  = errors.New("payment has no gateway transaction")
	ErrEmptyOTP          = errors.New("otp is required")
	ErrAlreadyProceeded  = errors.New("payment already proceeded")
	ErrAlreadyCanceled   = errors.New("payment already canceled")
	ErrNotYetRequested   = errors.New("payment has not been requested yet")
	ErrNotProceeded      = errors.New("payment has not been proceeded")
	ErrRequestFailed     = errors.New("payment request failed")
	ErrProceedFailed     = errors.New("payment confirmation failed")
	ErrUnknownState      = errors.New("payment is in an unknown state")
	ErrInvalidTransition = errors.New("invalid payment state transition")
	ErrPremiumExists     = errors.New("premium already created for payment")
	ErrMaxOutstanding    = errors.New("maximum outstanding transactions reached")
)

// OutstandingLimitError is returned when a write would leave a policy with
// more outstanding payments than allowed.
type OutstandingLimitError struct {
	PolicyID uuid.UUID
	Max      int
}

func (e *OutstandingLimitError) Error() string {
	return fmt.Sprintf("The number of ongoing unproceeded transactions have already reached the maximum allowed %d. "+
		"Please proceed or cancel existing ones before requesting new payment.", e.Max)
}

func (e *OutstandingLimitError) Is(target error) bool {
	return target == ErrMaxOutstanding
}
