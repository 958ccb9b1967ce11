package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
)

type accountReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

type historyService interface {
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
}

type AccountHandler struct {
	accounts accountReader
	history  historyService
}

func NewAccountHandler(accounts accountReader, history historyService) *AccountHandler {
	return &AccountHandler{accounts: accounts, history: history}
}

type accountDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:        a.ID,
		UserID:    a.UserID,
		Balance:   a.Balance,
		Currency:  "XOF",
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.accounts.GetByUserID(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

type historyResponse struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 1<<30)

	account, err := h.accounts.GetByUserID(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	txns, total, err := h.history.History(r.Context(), userID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(txns))
	for i := range txns {
		dtos[i] = toTransactionDTO(&txns[i])
		// Statement amounts are signed from the owner's side: money leaving
		// this account reads negative.
		if txns[i].SenderAccountID != nil && *txns[i].SenderAccountID == account.ID {
			dtos[i].Amount = -dtos[i].Amount
		}
	}

	RespondSuccess(w, http.StatusOK, historyResponse{
		Transactions: dtos,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}

// queryInt parses a non-negative integer query parameter, clamping to max
// and falling back to def when absent or unparseable.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
