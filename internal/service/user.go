package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
)

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, tx *sql.Tx, user *domain.User) error
}

type accountStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error
}

type UserService struct {
	users        userStore
	accounts     accountStore
	db           *sql.DB
	openingFloat int64
}

func NewUserService(users userStore, accounts accountStore, db *sql.DB, openingFloat int64) *UserService {
	return &UserService{users: users, accounts: accounts, db: db, openingFloat: openingFloat}
}

type CreateUserRequest struct {
	ActorUserID uuid.UUID
	Phone       string
	Name        string
	PIN         string
	Role        domain.UserRole
}

// CreateUser provisions a user together with their XOF account in one
// transaction. Only admins may call it. Managers start with the configured
// opening float so they can fund cash deposits before collecting anything;
// everyone else starts at zero. Phone uniqueness is enforced by the database
// constraint, surfaced as ErrUserExists.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, *domain.Account, error) {
	log := logging.FromContext(ctx)

	actor, err := s.users.GetByID(ctx, req.ActorUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("CreateUser: actor: %w", err)
	}
	if actor.Role != domain.RoleAdmin {
		return nil, nil, fmt.Errorf("CreateUser: %w", domain.ErrAdminOnly)
	}

	if !req.Role.IsValid() {
		return nil, nil, fmt.Errorf("CreateUser: role %q: %w", req.Role, domain.ErrInvalidRole)
	}
	phone := strings.TrimSpace(req.Phone)
	if err := validatePhone(phone); err != nil {
		return nil, nil, fmt.Errorf("CreateUser: %w", err)
	}
	if err := validatePIN(req.PIN); err != nil {
		return nil, nil, fmt.Errorf("CreateUser: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("CreateUser: hash pin: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New(),
		Phone:     phone,
		Name:      strings.TrimSpace(req.Name),
		PinHash:   string(hash),
		Role:      req.Role,
		CreatedAt: now,
	}

	var balance int64
	if req.Role == domain.RoleManager {
		balance = s.openingFloat
	}
	account := &domain.Account{
		ID:        uuid.New(),
		UserID:    user.ID,
		Balance:   balance,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("CreateUser: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, nil, fmt.Errorf("CreateUser: %w", err)
	}
	if err := s.accounts.Create(ctx, tx, account); err != nil {
		return nil, nil, fmt.Errorf("CreateUser: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("CreateUser: commit: %w", err)
	}

	log.Info("user created",
		"user_id", user.ID,
		"role", user.Role,
		"opening_balance", account.Balance,
	)

	return user, account, nil
}

// GetProfile returns a user with their account.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, *domain.Account, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("GetProfile: %w", err)
	}
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("GetProfile: %w", err)
	}
	return user, account, nil
}

// validatePhone accepts E.164-shaped numbers only. The full international
// form is stored; the aggregator strips the country prefix itself.
func validatePhone(phone string) error {
	if len(phone) < 9 || len(phone) > 16 || phone[0] != '+' {
		return fmt.Errorf("validatePhone: %w", domain.ErrInvalidPhone)
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("validatePhone: %w", domain.ErrInvalidPhone)
		}
	}
	return nil
}

func validatePIN(pin string) error {
	if len(pin) != 4 {
		return fmt.Errorf("validatePIN: %w", domain.ErrInvalidPIN)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("validatePIN: %w", domain.ErrInvalidPIN)
		}
	}
	return nil
}
