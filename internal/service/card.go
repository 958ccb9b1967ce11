package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
)

type cardStore interface {
	Create(ctx context.Context, card *domain.NFCCard) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.NFCCard, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.NFCCard, error)
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) error
	UpdateVirtualToken(ctx context.Context, id uuid.UUID, token uuid.UUID) error
}

type userChecker interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type CardService struct {
	cards cardStore
	users userChecker
}

func NewCardService(cards cardStore, users userChecker) *CardService {
	return &CardService{cards: cards, users: users}
}

type RegisterCardRequest struct {
	UserID        uuid.UUID
	PhysicalToken string
}

// RegisterCard binds a personalized card to a client. The physical token is
// the manufacturer serial printed into the chip; registering the same one
// twice reports ErrCardExists. A fresh virtual token is minted on the spot.
func (s *CardService) RegisterCard(ctx context.Context, req RegisterCardRequest) (*domain.NFCCard, error) {
	log := logging.FromContext(ctx)

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("RegisterCard: %w", err)
	}
	if user.Role != domain.RoleClient {
		return nil, fmt.Errorf("RegisterCard: %s accounts cannot hold cards: %w", user.Role, domain.ErrInvalidRole)
	}

	token := strings.TrimSpace(req.PhysicalToken)
	if token == "" {
		return nil, fmt.Errorf("RegisterCard: empty physical token: %w", domain.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	card := &domain.NFCCard{
		ID:            uuid.New(),
		UserID:        user.ID,
		PhysicalToken: token,
		VirtualToken:  uuid.New(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("RegisterCard: %w", err)
	}

	log.Info("card registered", "card_id", card.ID, "user_id", user.ID)
	return card, nil
}

func (s *CardService) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.NFCCard, error) {
	cards, err := s.cards.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCards: %w", err)
	}
	return cards, nil
}

func (s *CardService) LockCard(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error) {
	return s.setLocked(ctx, cardID, userID, true)
}

func (s *CardService) UnlockCard(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error) {
	return s.setLocked(ctx, cardID, userID, false)
}

func (s *CardService) setLocked(ctx context.Context, cardID, userID uuid.UUID, locked bool) (*domain.NFCCard, error) {
	log := logging.FromContext(ctx)

	card, err := s.requireOwned(ctx, cardID, userID)
	if err != nil {
		return nil, fmt.Errorf("setLocked: %w", err)
	}
	if card.Locked == locked {
		return card, nil
	}
	if err := s.cards.SetLocked(ctx, cardID, locked); err != nil {
		return nil, fmt.Errorf("setLocked: %w", err)
	}

	card, err = s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("setLocked: %w", err)
	}
	log.Info("card lock state changed", "card_id", cardID, "locked", locked)
	return card, nil
}

// RotateVirtualToken issues a fresh virtual token, invalidating whatever
// merchant terminals have seen so far. The physical token never changes.
func (s *CardService) RotateVirtualToken(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error) {
	log := logging.FromContext(ctx)

	if _, err := s.requireOwned(ctx, cardID, userID); err != nil {
		return nil, fmt.Errorf("RotateVirtualToken: %w", err)
	}
	if err := s.cards.UpdateVirtualToken(ctx, cardID, uuid.New()); err != nil {
		return nil, fmt.Errorf("RotateVirtualToken: %w", err)
	}

	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("RotateVirtualToken: %w", err)
	}
	log.Info("virtual token rotated", "card_id", cardID)
	return card, nil
}

// requireOwned resolves the card and hides its existence from non-owners:
// a foreign card id reads the same as a missing one.
func (s *CardService) requireOwned(ctx context.Context, cardID, userID uuid.UUID) (*domain.NFCCard, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("requireOwned: %w", domain.ErrCardNotFound)
	}
	return card, nil
}
