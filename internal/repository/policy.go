package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

type PolicyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Policy, error) {
	var p domain.Policy
	var status int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, value FROM policies WHERE id = $1`, id,
	).Scan(&p.ID, &status, &p.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrPolicyNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	p.Status = domain.PolicyStatus(status)
	return &p, nil
}

func (r *PolicyRepository) GetStatus(ctx context.Context, id uuid.UUID) (domain.PolicyStatus, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("GetStatus: %w", err)
	}
	return p.Status, nil
}

func (r *PolicyRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PolicyStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE policies SET status = $1, updated_at = now() WHERE id = $2`,
		int(status), id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrPolicyNotFound)
	}
	return nil
}

func (r *PolicyRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO policies (id, status, value) VALUES ($1, $2, $3)`,
		p.ID, int(p.Status), p.Value,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
