package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a QMoney payment. It is stored as a
// one-letter code and rendered as its name.
type PaymentStatus int

const (
	PaymentStatusUnknown PaymentStatus = iota
	PaymentStatusInitiated
	PaymentStatusWaitingForConfirmation
	PaymentStatusProceeded
	PaymentStatusFailed
	PaymentStatusCanceled
)

var paymentStatusCodes = [...]struct {
	code string
	name string
}{
	PaymentStatusUnknown:                {"U", "UNKNOWN"},
	PaymentStatusInitiated:              {"I", "INITIATED"},
	PaymentStatusWaitingForConfirmation: {"W", "WAITING_FOR_CONFIRMATION"},
	PaymentStatusProceeded:              {"P", "PROCEEDED"},
	PaymentStatusFailed:                 {"F", "FAILED"},
	PaymentStatusCanceled:               {"C", "CANCELED"},
}

// ParsePaymentStatus accepts either the code or the name of a status.
// Anything unrecognised maps to PaymentStatusUnknown.
func ParsePaymentStatus(s string) PaymentStatus {
	s = strings.TrimSpace(s)
	for i, c := range paymentStatusCodes {
		if s == c.code || s == c.name {
			return PaymentStatus(i)
		}
	}
	return PaymentStatusUnknown
}

func (s PaymentStatus) valid() bool {
	return s >= 0 && int(s) < len(paymentStatusCodes)
}

func (s PaymentStatus) Code() string {
	if !s.valid() {
		return paymentStatusCodes[PaymentStatusUnknown].code
	}
	return paymentStatusCodes[s].code
}

func (s PaymentStatus) String() string {
	if !s.valid() {
		return paymentStatusCodes[PaymentStatusUnknown].name
	}
	return paymentStatusCodes[s].name
}

// IsOutstanding reports whether a payment in this status still occupies one
// of its policy's outstanding-transaction slots.
func (s PaymentStatus) IsOutstanding() bool {
	return s != PaymentStatusProceeded && s != PaymentStatusCanceled
}

func (s PaymentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PaymentStatus) UnmarshalText(b []byte) error {
	*s = ParsePaymentStatus(string(b))
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return s.Code(), nil
}

func (s *PaymentStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*s = ParsePaymentStatus(v)
	case []byte:
		*s = ParsePaymentStatus(string(v))
	case nil:
		*s = PaymentStatusUnknown
	default:
		return fmt.Errorf("PaymentStatus.Scan: unsupported type %T", src)
	}
	return nil
}

// Payment is a persisted QMoney payment against an insurance policy.
type Payment struct {
	ID                    uuid.UUID
	PolicyID              *uuid.UUID
	PayerWallet           string
	Amount                int64
	ExternalTransactionID *string
	Status                PaymentStatus
	PremiumID             *uuid.UUID
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
