package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps err onto the AppError catalogue. The outstanding
// limit error keeps its own message since callers show it to payers.
func RespondDomainError(w http.ResponseWriter, err error) {
	appErr := appErrorFor(err)
	if appErr == nil {
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	var limitErr *domain.OutstandingLimitError
	if errors.As(err, &limitErr) {
		appErr = appErr.withMessage(limitErr.Error())
	}

	RespondAppError(w, appErr, nil)
}

func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrMaxOutstanding):
		return ErrMaxOutstanding
	case errors.Is(err, domain.ErrPolicyNotFound):
		return ErrPolicyNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	case errors.Is(err, domain.ErrPolicyNotIdle):
		return ErrPolicyNotIdle
	case errors.Is(err, domain.ErrMissingPolicy):
		return ErrMissingPolicy
	case errors.Is(err, domain.ErrEmptyOTP):
		return ErrEmptyOTP
	case errors.Is(err, domain.ErrEmptyTransaction):
		return ErrEmptyTransaction
	case errors.Is(err, domain.ErrNotYetRequested):
		return ErrNotYetRequested
	case errors.Is(err, domain.ErrAlreadyProceeded):
		return ErrAlreadyProceeded
	case errors.Is(err, domain.ErrAlreadyCanceled):
		return ErrAlreadyCanceled
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, domain.ErrUnknownState):
		return ErrUnknownState
	case errors.Is(err, domain.ErrRequestFailed):
		return ErrRequestFailed
	case errors.Is(err, domain.ErrProceedFailed):
		return ErrProceedFailed
	case errors.Is(err, domain.ErrPremiumExists):
		return ErrPremiumExists
	}
	return nil
}
