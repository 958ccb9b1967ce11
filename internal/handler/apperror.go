package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid phone or PIN"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrManagerOnly = &AppError{http.StatusForbidden, "MANAGER_ONLY", "Cash operations require a manager"}
	ErrAdminOnly   = &AppError{http.StatusForbidden, "ADMIN_ONLY", "Operation requires an admin"}

	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountFrozen     = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_FROZEN", "Account is frozen"}
	ErrAccountClosed     = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrAccountNotFound   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrSelfTransfer      = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Sender and receiver must differ"}
	ErrLimitExceeded     = &AppError{http.StatusUnprocessableEntity, "TRANSACTION_LIMIT_EXCEEDED", "Transaction limit exceeded"}
	ErrRecipientNotFound = &AppError{http.StatusUnprocessableEntity, "RECIPIENT_NOT_FOUND", "Recipient not found"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount is below the transaction minimum"}
	ErrUnknownOperator   = &AppError{http.StatusBadRequest, "UNKNOWN_OPERATOR", "Unknown operator service code for this flow"}

	ErrInvalidRole  = &AppError{http.StatusBadRequest, "INVALID_ROLE", "Invalid role"}
	ErrInvalidPhone = &AppError{http.StatusBadRequest, "INVALID_PHONE", "Phone number must be in international format"}
	ErrInvalidPIN   = &AppError{http.StatusBadRequest, "INVALID_PIN", "PIN must be exactly four digits"}
	ErrUserExists   = &AppError{http.StatusConflict, "USER_ALREADY_EXISTS", "A user with this phone already exists"}

	ErrCardNotFound = &AppError{http.StatusNotFound, "CARD_NOT_FOUND", "Card not found"}
	ErrCardExists   = &AppError{http.StatusConflict, "CARD_ALREADY_EXISTS", "This card is already registered"}
	ErrCardLocked   = &AppError{http.StatusUnprocessableEntity, "CARD_LOCKED", "Card is locked"}

	ErrSettlementRejected  = &AppError{http.StatusUnprocessableEntity, "SETTLEMENT_REJECTED", "The operator rejected the transaction"}
	ErrGatewayUnavailable  = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "The settlement gateway is unavailable"}
	ErrReferenceGeneration = &AppError{http.StatusInternalServerError, "REFERENCE_GENERATION_FAILED", "Could not allocate a transaction reference"}

	ErrUnknownReference    = &AppError{http.StatusNotFound, "UNKNOWN_REFERENCE", "No transaction with this reference"}
	ErrCallbackConflict    = &AppError{http.StatusConflict, "CALLBACK_CONFLICT", "Callback contradicts a settled transaction"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
