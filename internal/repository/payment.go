package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

const paymentColumns = `id, policy_id, payer_wallet, amount, external_transaction_id,
	status, premium_id, created_at, updated_at`

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PaymentRepository persists QMoney payments. Every write that leaves a
// payment outstanding is checked against the per-policy limit inside the
// caller's transaction.
type PaymentRepository struct {
	db             *sql.DB
	maxOutstanding int
}

func NewPaymentRepository(db *sql.DB, maxOutstanding int) *PaymentRepository {
	if maxOutstanding < 1 {
		maxOutstanding = 1
	}
	return &PaymentRepository{db: db, maxOutstanding: maxOutstanding}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	if err := r.enforceOutstandingLimit(ctx, tx, payment); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO qmoney_payments (
			id, policy_id, payer_wallet, amount, external_transaction_id,
			status, premium_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.PolicyID, payment.PayerWallet, payment.Amount, payment.ExternalTransactionID,
		payment.Status, payment.PremiumID, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("Create: %w", domain.ErrPolicyNotFound)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// UpdateStatus writes the payment's status and gateway transaction id.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	if err := r.enforceOutstandingLimit(ctx, tx, payment); err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	err := tx.QueryRowContext(ctx,
		`UPDATE qmoney_payments SET status = $1, external_transaction_id = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at`,
		payment.Status, payment.ExternalTransactionID, payment.ID,
	).Scan(&payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}

func (r *PaymentRepository) SetPremium(ctx context.Context, tx *sql.Tx, id, premiumID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE qmoney_payments SET premium_id = $1, updated_at = now() WHERE id = $2`,
		premiumID, id,
	)
	if err != nil {
		return fmt.Errorf("SetPremium: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetPremium: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetPremium: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM qmoney_payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// GetForUpdate loads the payment and locks its row until tx ends.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM qmoney_payments WHERE id = $1 FOR UPDATE`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM qmoney_payments
		WHERE policy_id = $1 ORDER BY created_at, id`, policyID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPolicy: %w", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPolicy: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPolicy: rows: %w", err)
	}
	return payments, nil
}

// CountOutstanding returns how many payments of the policy are neither
// proceeded nor canceled.
func (r *PaymentRepository) CountOutstanding(ctx context.Context, policyID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM qmoney_payments
		WHERE policy_id = $1 AND status NOT IN ($2, $3)`,
		policyID, domain.PaymentStatusProceeded, domain.PaymentStatusCanceled,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountOutstanding: %w", err)
	}
	return n, nil
}

// enforceOutstandingLimit locks the payment's policy row so that concurrent
// writers for the same policy serialise, then rejects the write if it would
// leave more than maxOutstanding payments neither proceeded nor canceled.
func (r *PaymentRepository) enforceOutstandingLimit(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	if payment.PolicyID == nil || !payment.Status.IsOutstanding() {
		return nil
	}

	var locked uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM policies WHERE id = $1 FOR UPDATE`, *payment.PolicyID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPolicyNotFound
		}
		return fmt.Errorf("lock policy: %w", err)
	}

	var others int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM qmoney_payments
		WHERE policy_id = $1 AND id <> $2 AND status NOT IN ($3, $4)`,
		*payment.PolicyID, payment.ID, domain.PaymentStatusProceeded, domain.PaymentStatusCanceled,
	).Scan(&others)
	if err != nil {
		return fmt.Errorf("count outstanding: %w", err)
	}

	if others+1 > r.maxOutstanding {
		return &domain.OutstandingLimitError{PolicyID: *payment.PolicyID, Max: r.maxOutstanding}
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var policyID, premiumID uuid.NullUUID

	err := s.Scan(
		&p.ID, &policyID, &p.PayerWallet, &p.Amount, &p.ExternalTransactionID,
		&p.Status, &premiumID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if policyID.Valid {
		p.PolicyID = &policyID.UUID
	}
	if premiumID.Valid {
		p.PremiumID = &premiumID.UUID
	}
	return &p, nil
}
