package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

func SeedPolicy(t *testing.T, db *sql.DB, status domain.PolicyStatus, value int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO policies (id, status, value) VALUES ($1, $2, $3)`,
		id, int(status), value,
	)
	if err != nil {
		t.Fatalf("seed policy: %v", err)
	}
	return id
}

// SeedPayment inserts a payment row directly, bypassing the outstanding
// transaction guard.
func SeedPayment(t *testing.T, db *sql.DB, policyID *uuid.UUID, status domain.PaymentStatus, externalID *string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO qmoney_payments (id, policy_id, payer_wallet, amount, external_transaction_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, policyID, "W1", 10, externalID, status,
	)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return id
}

func PaymentStatusOf(t *testing.T, db *sql.DB, id uuid.UUID) domain.PaymentStatus {
	t.Helper()

	var status domain.PaymentStatus
	if err := db.QueryRow(`SELECT status FROM qmoney_payments WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read payment status: %v", err)
	}
	return status
}

func PolicyStatusOf(t *testing.T, db *sql.DB, id uuid.UUID) domain.PolicyStatus {
	t.Helper()

	var status int
	if err := db.QueryRow(`SELECT status FROM policies WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read policy status: %v", err)
	}
	return domain.PolicyStatus(status)
}

func CountPremiums(t *testing.T, db *sql.DB, policyID uuid.UUID) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM premiums WHERE policy_id = $1`, policyID).Scan(&n); err != nil {
		t.Fatalf("count premiums: %v", err)
	}
	return n
}
