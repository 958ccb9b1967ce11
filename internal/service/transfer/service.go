// Package transfer orchestrates every transaction kind: cash handled at an
// agent desk, wallet-to-wallet transfers, NFC card payments, and the two
// mobile-money flows settled through the external aggregator.
package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/config"
	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/gateway"
	"github.com/fkash/fkash-backend/internal/metrics"
)

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	MaxSequenceForDate(ctx context.Context, tx *sql.Tx, day time.Time) (int, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
	MarkProcessing(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalRef string) error
	MarkCompleted(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalRef *string) error
	MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, errorMessage string, externalRef *string) error
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type cardRepo interface {
	GetByToken(ctx context.Context, token string) (*domain.NFCCard, error)
}

type balanceLedger interface {
	Move(ctx context.Context, tx *sql.Tx, transactionID, from, to uuid.UUID, amount int64) error
	Credit(ctx context.Context, tx *sql.Tx, transactionID, id uuid.UUID, amount int64) error
	Debit(ctx context.Context, tx *sql.Tx, transactionID, id uuid.UUID, amount int64) error
}

type settlementGateway interface {
	Submit(ctx context.Context, req gateway.SubmitRequest) (*gateway.Outcome, error)
}

type Service struct {
	transactions transactionRepo
	accounts     accountRepo
	users        userRepo
	cards        cardRepo
	ledger       balanceLedger
	gateway      settlementGateway
	metrics      *metrics.Metrics
	db           *sql.DB
	config       *config.Config
}

func NewService(
	transactions transactionRepo,
	accounts accountRepo,
	users userRepo,
	cards cardRepo,
	ledger balanceLedger,
	gw settlementGateway,
	m *metrics.Metrics,
	db *sql.DB,
	cfg *config.Config,
) *Service {
	return &Service{
		transactions: transactions,
		accounts:     accounts,
		users:        users,
		cards:        cards,
		ledger:       ledger,
		gateway:      gw,
		metrics:      m,
		db:           db,
		config:       cfg,
	}
}

// GetTransactionForUser returns the transaction only when the requesting user
// is one of its parties; admins may read any transaction.
func (s *Service) GetTransactionForUser(ctx context.Context, reference string, userID uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionForUser: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionForUser: %w", err)
	}
	if user.Role == domain.RoleAdmin {
		return txn, nil
	}

	isParty, err := s.userIsParty(ctx, txn, userID)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionForUser: %w", err)
	}
	if !isParty {
		return nil, fmt.Errorf("GetTransactionForUser: %w", domain.ErrNotFound)
	}
	return txn, nil
}

func (s *Service) userIsParty(ctx context.Context, txn *domain.Transaction, userID uuid.UUID) (bool, error) {
	for _, acctID := range []*uuid.UUID{txn.SenderAccountID, txn.ReceiverAccountID} {
		if acctID == nil {
			continue
		}
		acct, err := s.accounts.GetByID(ctx, *acctID)
		if err != nil {
			return false, fmt.Errorf("userIsParty: %w", err)
		}
		if acct.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// History returns the user's sent and received transactions, newest first,
// with the total count for pagination.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	acct, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}

	txns, total, err := s.transactions.ListByAccount(ctx, acct.ID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return txns, total, nil
}
