package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/service"
)

type cardService interface {
	RegisterCard(ctx context.Context, req service.RegisterCardRequest) (*domain.NFCCard, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]domain.NFCCard, error)
	LockCard(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error)
	UnlockCard(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error)
	RotateVirtualToken(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error)
}

type CardHandler struct {
	cards cardService
}

func NewCardHandler(cards cardService) *CardHandler {
	return &CardHandler{cards: cards}
}

type registerCardRequest struct {
	PhysicalToken string `json:"physical_token"`
}

func (r registerCardRequest) Validate() []FieldError {
	var errs []FieldError
	if r.PhysicalToken == "" {
		errs = append(errs, FieldError{Field: "physical_token", Message: "required"})
	}
	return errs
}

type cardDTO struct {
	ID            uuid.UUID `json:"id"`
	PhysicalToken string    `json:"physical_token"`
	VirtualToken  uuid.UUID `json:"virtual_token"`
	Locked        bool      `json:"locked"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCardDTO(c *domain.NFCCard) cardDTO {
	return cardDTO{
		ID:            c.ID,
		PhysicalToken: c.PhysicalToken,
		VirtualToken:  c.VirtualToken,
		Locked:        c.Locked,
		CreatedAt:     c.CreatedAt,
	}
}

func (h *CardHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req registerCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	card, err := h.cards.RegisterCard(r.Context(), service.RegisterCardRequest{
		UserID:        userID,
		PhysicalToken: req.PhysicalToken,
	})
	if err != nil {
		log.Warn("card registration failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toCardDTO(card))
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	cards, err := h.cards.ListCards(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("card list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]cardDTO, len(cards))
	for i := range cards {
		dtos[i] = toCardDTO(&cards[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *CardHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "lock", h.cards.LockCard)
}

func (h *CardHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "unlock", h.cards.UnlockCard)
}

func (h *CardHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "rotate", h.cards.RotateVirtualToken)
}

func (h *CardHandler) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error)) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	cardID, appErr := pathUUID(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	card, err := fn(r.Context(), cardID, userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("card mutation failed", "op", op, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCardDTO(card))
}
