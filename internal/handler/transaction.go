package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/service/transfer"
)

type transactionService interface {
	CreateTransfer(ctx context.Context, req transfer.TransferRequest) (*domain.Transaction, error)
	CreateCardPayment(ctx context.Context, req transfer.CardPaymentRequest) (*domain.Transaction, error)
	CreateCashDeposit(ctx context.Context, req transfer.CashDepositRequest) (*domain.Transaction, error)
	CreateCashWithdrawal(ctx context.Context, req transfer.CashWithdrawalRequest) (*domain.Transaction, error)
	CreateMomoDeposit(ctx context.Context, req transfer.MomoDepositRequest) (*domain.Transaction, error)
	CreateMomoWithdrawal(ctx context.Context, req transfer.MomoWithdrawalRequest) (*domain.Transaction, error)
	GetTransactionForUser(ctx context.Context, reference string, userID uuid.UUID) (*domain.Transaction, error)
}

type TransactionHandler struct {
	transactions transactionService
}

func NewTransactionHandler(transactions transactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

type transactionDTO struct {
	ID                uuid.UUID  `json:"id"`
	Reference         string     `json:"reference"`
	Kind              string     `json:"kind"`
	Status            string     `json:"status"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	SenderAccountID   *uuid.UUID `json:"sender_account_id,omitempty"`
	ReceiverAccountID *uuid.UUID `json:"receiver_account_id,omitempty"`
	PhoneNumber       *string    `json:"phone_number,omitempty"`
	OperatorCode      *string    `json:"operator_code,omitempty"`
	Operator          string     `json:"operator,omitempty"`
	ExternalReference *string    `json:"external_reference,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	dto := transactionDTO{
		ID:                t.ID,
		Reference:         t.Reference,
		Kind:              string(t.Kind),
		Status:            string(t.Status),
		Amount:            t.Amount,
		Currency:          "XOF",
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		PhoneNumber:       t.PhoneNumber,
		OperatorCode:      t.OperatorCode,
		ExternalReference: t.ExternalReference,
		ErrorMessage:      t.ErrorMessage,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
	}
	if t.OperatorCode != nil {
		dto.Operator = domain.OperatorDisplayName(*t.OperatorCode)
	}
	return dto
}

type transferRequest struct {
	ReceiverPhone string `json:"receiver_phone"`
	Amount        int64  `json:"amount"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ReceiverPhone == "" {
		errs = append(errs, FieldError{Field: "receiver_phone", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

type cardPaymentRequest struct {
	CardToken string `json:"card_token"`
	Amount    int64  `json:"amount"`
}

func (r cardPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.CardToken == "" {
		errs = append(errs, FieldError{Field: "card_token", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

type cashRequest struct {
	ClientPhone string `json:"client_phone"`
	Amount      int64  `json:"amount"`
}

func (r cashRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ClientPhone == "" {
		errs = append(errs, FieldError{Field: "client_phone", Message: "required"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

type momoRequest struct {
	OperatorCode string `json:"operator_code"`
	Phone        string `json:"phone"`
	Amount       int64  `json:"amount"`
}

func (r momoRequest) Validate() []FieldError {
	var errs []FieldError
	if r.OperatorCode == "" {
		errs = append(errs, FieldError{Field: "operator_code", Message: "required"})
	}
	if r.Phone == "" {
		errs = append(errs, FieldError{Field: "phone", Message: "required"})
	} else if !strings.HasPrefix(r.Phone, "+") {
		errs = append(errs, FieldError{Field: "phone", Message: "must be in international format"})
	}
	if r.Amount <= 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

func (h *TransactionHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateTransfer(r.Context(), transfer.TransferRequest{
		SenderUserID:  userID,
		ReceiverPhone: req.ReceiverPhone,
		Amount:        req.Amount,
	})
	if err != nil {
		log.Warn("transfer failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondCreatedTransaction(w, txn, http.StatusCreated)
}

func (h *TransactionHandler) CreateCardPayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req cardPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateCardPayment(r.Context(), transfer.CardPaymentRequest{
		MerchantUserID: userID,
		CardToken:      req.CardToken,
		Amount:         req.Amount,
	})
	if err != nil {
		log.Warn("card payment failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondCreatedTransaction(w, txn, http.StatusCreated)
}

func (h *TransactionHandler) CreateCashDeposit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateCashDeposit(r.Context(), transfer.CashDepositRequest{
		ManagerUserID: userID,
		ClientPhone:   req.ClientPhone,
		Amount:        req.Amount,
	})
	if err != nil {
		log.Warn("cash deposit failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondCreatedTransaction(w, txn, http.StatusCreated)
}

func (h *TransactionHandler) CreateCashWithdrawal(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateCashWithdrawal(r.Context(), transfer.CashWithdrawalRequest{
		ManagerUserID: userID,
		ClientPhone:   req.ClientPhone,
		Amount:        req.Amount,
	})
	if err != nil {
		log.Warn("cash withdrawal failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondCreatedTransaction(w, txn, http.StatusCreated)
}

func (h *TransactionHandler) CreateMomoDeposit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req momoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateMomoDeposit(r.Context(), transfer.MomoDepositRequest{
		UserID:       userID,
		Amount:       req.Amount,
		OperatorCode: req.OperatorCode,
		Phone:        req.Phone,
	})
	if err != nil {
		log.Warn("momo deposit failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	// Settlement is pending until the operator calls back.
	respondCreatedTransaction(w, txn, http.StatusAccepted)
}

func (h *TransactionHandler) CreateMomoWithdrawal(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req momoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.transactions.CreateMomoWithdrawal(r.Context(), transfer.MomoWithdrawalRequest{
		UserID:       userID,
		Amount:       req.Amount,
		OperatorCode: req.OperatorCode,
		Phone:        req.Phone,
	})
	if err != nil {
		log.Warn("momo withdrawal failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondCreatedTransaction(w, txn, http.StatusAccepted)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	reference := r.PathValue("reference")
	if reference == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	txn, err := h.transactions.GetTransactionForUser(r.Context(), reference, userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

func respondCreatedTransaction(w http.ResponseWriter, txn *domain.Transaction, status int) {
	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%s", txn.Reference))
	RespondSuccess(w, status, toTransactionDTO(txn))
}
