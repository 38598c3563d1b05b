package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PremiumPayTypeMobile marks a premium paid through a mobile wallet.
const PremiumPayTypeMobile = "M"

type Premium struct {
	ID        uuid.UUID
	PolicyID  uuid.UUID
	Amount    decimal.Decimal
	Receipt   string
	PayType   string
	PayDate   time.Time
	IsOffline bool
	CreatedBy string
	CreatedAt time.Time
}
