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

const premiumColumns = `id, policy_id, amount, receipt, pay_type, pay_date,
	is_offline, created_by, created_at`

type PremiumRepository struct {
	db *sql.DB
}

func NewPremiumRepository(db *sql.DB) *PremiumRepository {
	return &PremiumRepository{db: db}
}

func (r *PremiumRepository) Create(ctx context.Context, tx *sql.Tx, premium *domain.Premium) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO premiums (`+premiumColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		premium.ID, premium.PolicyID, premium.Amount, premium.Receipt, premium.PayType,
		premium.PayDate, premium.IsOffline, premium.CreatedBy, premium.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return fmt.Errorf("Create: %w", domain.ErrPremiumExists)
			case pqForeignKeyViolation:
				return fmt.Errorf("Create: %w", domain.ErrPolicyNotFound)
			}
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PremiumRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Premium, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+premiumColumns+` FROM premiums WHERE id = $1`, id,
	)
	var p domain.Premium
	err := row.Scan(
		&p.ID, &p.PolicyID, &p.Amount, &p.Receipt, &p.PayType, &p.PayDate,
		&p.IsOffline, &p.CreatedBy, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &p, nil
}
