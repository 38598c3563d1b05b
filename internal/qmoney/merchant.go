package qmoney

import (
	"context"

	"github.com/josh-kwaku/qmoney-payment/internal/logging"
)

// Merchant is the wallet receiving payments, with the PIN that authorises
// pulling money into it.
type Merchant struct {
	WalletID string
	PinCode  string
}

func NewMerchant(walletID, pinCode string) *Merchant {
	return &Merchant{WalletID: walletID, PinCode: pinCode}
}

// RequestPayment starts a transfer from the payer's wallet. The returned
// transaction is never INITIATED: it is either waiting for the payer's OTP or
// failed, in which case Err carries the gateway error.
func (m *Merchant) RequestPayment(ctx context.Context, gw Gateway, payer string, amount int64) *Transaction {
	t := NewTransaction(gw, m, payer, amount)
	if err := t.RequestOTP(ctx); err != nil {
		logging.FromContext(ctx).Warn("qmoney payment request failed",
			"payer_wallet", payer,
			"amount", amount,
			"error", err,
		)
	}
	return t
}

func (m *Merchant) Proceed(ctx context.Context, t *Transaction, otp string) (string, error) {
	return t.Proceed(ctx, otp)
}
