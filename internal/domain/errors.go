package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountFrozen       = errors.New("account frozen")
	ErrAccountClosed       = errors.New("account closed")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrSelfTransfer        = errors.New("sender and receiver must be distinct")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrLimitExceeded       = errors.New("transaction limit exceeded")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrInvalidPIN          = errors.New("pin must be exactly four digits")
	ErrUnknownOperator     = errors.New("unknown operator service code")
	ErrManagerOnly         = errors.New("operation restricted to managers")
	ErrCardNotFound        = errors.New("card not found")
	ErrCardLocked          = errors.New("card locked")
	ErrCardExists          = errors.New("card already registered for this physical token")
	ErrUserExists          = errors.New("user already exists for this phone")
	ErrInvalidCredentials  = errors.New("invalid phone or pin")
	ErrAdminOnly           = errors.New("operation restricted to admins")
	ErrDuplicateReference  = errors.New("reference already allocated")
	ErrReferenceExhausted  = errors.New("reference allocation attempts exhausted")
	ErrGatewayRejected     = errors.New("settlement rejected by operator")
	ErrGatewayUnavailable  = errors.New("settlement gateway unavailable")
	ErrTransactionTerminal = errors.New("transaction already in terminal state")
	ErrCallbackConflict    = errors.New("callback conflicts with recorded terminal status")
	ErrInvalidRequest      = errors.New("invalid request")
)
