package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

const paymentEventColumns = `id, payment_id, event_type, actor, payload, created_at`

type PaymentEventRepository struct {
	db *sql.DB
}

func NewPaymentEventRepository(db *sql.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_events (id, payment_id, event_type, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PaymentID, event.EventType, event.Actor,
		payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Record builds and stores an event for the payment. Payload may be nil.
func (r *PaymentEventRepository) Record(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID, eventType domain.PaymentEventType, actor string, payload any) error {
	event := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("Record: marshal payload: %w", err)
		}
		event.Payload = b
	}
	if err := r.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (r *PaymentEventRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentEventColumns+` FROM payment_events
		WHERE payment_id = $1 ORDER BY created_at`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByPaymentID: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		e, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByPaymentID: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByPaymentID: rows: %w", err)
	}
	return events, nil
}

func scanPaymentEvent(s scanner) (*domain.PaymentEvent, error) {
	var e domain.PaymentEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.PaymentID, &e.EventType, &e.Actor,
		&payload, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		e.Payload = payload
	}
	return &e, nil
}
