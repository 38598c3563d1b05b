package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventTypeCreated       PaymentEventType = "created"
	PaymentEventTypeRequested     PaymentEventType = "requested"
	PaymentEventTypeRequestFailed PaymentEventType = "request_failed"
	PaymentEventTypeProceeded     PaymentEventType = "proceeded"
	PaymentEventTypeProceedFailed PaymentEventType = "proceed_failed"
	PaymentEventTypeCanceled      PaymentEventType = "canceled"
)

type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType PaymentEventType
	Actor     string
	Payload   json.RawMessage
	CreatedAt time.Time
}
