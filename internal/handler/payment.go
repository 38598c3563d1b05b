package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/qmoney-payment/internal/auth"
	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/logging"
	"github.com/josh-kwaku/qmoney-payment/internal/service/payment"
)

type paymentService interface {
	RequestPayment(ctx context.Context, req payment.CreateRequest) (*domain.Payment, payment.Result, error)
	Request(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error)
	Proceed(ctx context.Context, id uuid.UUID, otp, actor string) (payment.Result, error)
	Cancel(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Events(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error)
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]domain.Payment, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	PolicyID    *uuid.UUID `json:"policy_id"`
	PayerWallet string     `json:"payer_wallet" validate:"required,max=200"`
	Amount      int64      `json:"amount" validate:"gte=0"`
}

type proceedRequest struct {
	OTP string `json:"otp"`
}

type paymentDTO struct {
	ID                    uuid.UUID  `json:"id"`
	PolicyID              *uuid.UUID `json:"policy_id"`
	PayerWallet           string     `json:"payer_wallet"`
	Amount                int64      `json:"amount"`
	Status                string     `json:"status"`
	ExternalTransactionID *string    `json:"external_transaction_id,omitempty"`
	PremiumID             *uuid.UUID `json:"premium_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:                    p.ID,
		PolicyID:              p.PolicyID,
		PayerWallet:           p.PayerWallet,
		Amount:                p.Amount,
		Status:                p.Status.String(),
		ExternalTransactionID: p.ExternalTransactionID,
		PremiumID:             p.PremiumID,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

type resultDTO struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type operationResponse struct {
	Payment paymentDTO `json:"payment"`
	Result  resultDTO  `json:"result"`
}

type eventDTO struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toResultDTO(res payment.Result) resultDTO {
	return resultDTO{OK: res.OK, Status: res.Status.String(), Message: res.Message}
}

// Create stores a payment and requests it from the gateway straight away.
// The payment exists even when the request is refused, so the response is
// 201 either way and the result tells the two apart.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := validateStruct(req); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, res, err := h.payments.RequestPayment(r.Context(), payment.CreateRequest{
		PolicyID:    req.PolicyID,
		PayerWallet: req.PayerWallet,
		Amount:      req.Amount,
		Actor:       actor,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, operationResponse{
		Payment: toPaymentDTO(p),
		Result:  toResultDTO(res),
	})
}

func (h *PaymentHandler) Request(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "request", func(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error) {
		return h.payments.Request(ctx, id, actor)
	})
}

func (h *PaymentHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	var req proceedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	h.runOperation(w, r, "proceed", func(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error) {
		return h.payments.Proceed(ctx, id, req.OTP, actor)
	})
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "cancel", func(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error) {
		return h.payments.Cancel(ctx, id, actor)
	})
}

type operation func(ctx context.Context, id uuid.UUID, actor string) (payment.Result, error)

// runOperation executes op on the payment named in the path. Refusals are
// answered with the error mapped from the result's reason and the
// payer-facing message.
func (h *PaymentHandler) runOperation(w http.ResponseWriter, r *http.Request, name string, op operation) {
	log := logging.FromContext(r.Context())

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	res, err := op(r.Context(), paymentID, actor)
	if err != nil {
		log.Warn("payment operation failed", "operation", name, "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	if !res.OK {
		log.Info("payment operation refused", "operation", name, "payment_id", paymentID, "reason", res.Reason)
		appErr := appErrorFor(res.Reason)
		if appErr == nil {
			appErr = ErrInvalidTransition
		}
		RespondAppError(w, appErr.withMessage(res.Message), toResultDTO(res))
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		log.Warn("payment lookup failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, operationResponse{
		Payment: toPaymentDTO(p),
		Result:  toResultDTO(res),
	})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Events(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	events, err := h.payments.Events(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment events lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventDTO{
			ID:        e.ID,
			EventType: string(e.EventType),
			Actor:     e.Actor,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *PaymentHandler) ListByPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	payments, err := h.payments.ListByPolicy(r.Context(), policyID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("policy payments lookup failed", "policy_id", policyID, "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]paymentDTO, 0, len(payments))
	for i := range payments {
		dtos = append(dtos, toPaymentDTO(&payments[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
