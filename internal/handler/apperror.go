package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

// withMessage returns a copy of e carrying a caller specific message.
func (e *AppError) withMessage(msg string) *AppError {
	if msg == "" {
		return e
	}
	return &AppError{Status: e.Status, Code: e.Code, Message: msg}
}

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must not be negative"}
	ErrPolicyNotFound    = &AppError{http.StatusUnprocessableEntity, "POLICY_NOT_FOUND", "Policy not found"}
	ErrPolicyNotIdle     = &AppError{http.StatusUnprocessableEntity, "POLICY_NOT_IDLE", "Policy is not idle"}
	ErrMissingPolicy     = &AppError{http.StatusUnprocessableEntity, "MISSING_POLICY", "Payment has no policy"}
	ErrMaxOutstanding    = &AppError{http.StatusConflict, "MAX_OUTSTANDING_TRANSACTIONS", "Too many outstanding transactions for this policy"}
	ErrEmptyOTP          = &AppError{http.StatusBadRequest, "EMPTY_OTP", "OTP is required"}
	ErrEmptyTransaction  = &AppError{http.StatusUnprocessableEntity, "EMPTY_TRANSACTION", "Payment has no gateway transaction"}
	ErrNotYetRequested   = &AppError{http.StatusConflict, "NOT_YET_REQUESTED", "Payment has not been requested yet"}
	ErrAlreadyProceeded  = &AppError{http.StatusConflict, "ALREADY_PROCEEDED", "Payment has already been proceeded"}
	ErrAlreadyCanceled   = &AppError{http.StatusConflict, "ALREADY_CANCELED", "Payment has already been canceled"}
	ErrInvalidTransition = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Payment cannot move to the requested state"}
	ErrUnknownState      = &AppError{http.StatusConflict, "UNKNOWN_STATE", "Payment is in an unknown state"}
	ErrRequestFailed     = &AppError{http.StatusUnprocessableEntity, "REQUEST_FAILED", "The payment request could not be made"}
	ErrProceedFailed     = &AppError{http.StatusUnprocessableEntity, "PROCEED_FAILED", "The payment could not be confirmed"}
	ErrPremiumExists     = &AppError{http.StatusConflict, "PREMIUM_EXISTS", "Premium already created for this payment"}
)
