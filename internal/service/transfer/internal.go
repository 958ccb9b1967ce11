package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
)

// The four internal kinds settle synchronously: the transaction row and the
// balance movement commit together, so a completed record and the moved funds
// are never observable apart.

type CashDepositRequest struct {
	ManagerUserID uuid.UUID
	ClientPhone   string
	Amount        int64
}

type CashWithdrawalRequest struct {
	ManagerUserID uuid.UUID
	ClientPhone   string
	Amount        int64
}

type TransferRequest struct {
	SenderUserID  uuid.UUID
	ReceiverPhone string
	Amount        int64
}

type CardPaymentRequest struct {
	MerchantUserID uuid.UUID
	CardToken      string
	Amount         int64
}

// CreateCashDeposit records cash handed to a manager at an agent desk. The
// manager's float account funds the client's wallet, so the float ceiling is
// what bounds how much cash a desk can take in before rebalancing.
func (s *Service) CreateCashDeposit(ctx context.Context, req CashDepositRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}

	manager, err := s.users.GetByID(ctx, req.ManagerUserID)
	if err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}
	if err := requireManager(manager); err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}

	client, err := s.resolveCounterparty(ctx, req.ClientPhone)
	if err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}

	managerAcct, clientAcct, err := s.resolveAccounts(ctx, manager.ID, client.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}
	if err := verifyAccountActive(managerAcct, "manager account"); err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}
	if err := verifyAccountActive(clientAcct, "client account"); err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}

	txn, err := s.recordInternal(ctx, domain.KindDepositCash, managerAcct, clientAcct, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateCashDeposit: %w", err)
	}

	log.Info("cash deposit completed",
		"reference", txn.Reference,
		"manager_id", manager.ID,
		"client_id", client.ID,
		"amount", req.Amount,
	)
	return txn, nil
}

// CreateCashWithdrawal records cash paid out by a manager; the client's
// wallet funds the manager's float account.
func (s *Service) CreateCashWithdrawal(ctx context.Context, req CashWithdrawalRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}

	manager, err := s.users.GetByID(ctx, req.ManagerUserID)
	if err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}
	if err := requireManager(manager); err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}

	client, err := s.resolveCounterparty(ctx, req.ClientPhone)
	if err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}

	clientAcct, managerAcct, err := s.resolveAccounts(ctx, client.ID, manager.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}
	if err := verifyAccountActive(clientAcct, "client account"); err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}
	if err := verifyAccountActive(managerAcct, "manager account"); err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}

	txn, err := s.recordInternal(ctx, domain.KindWithdrawCash, clientAcct, managerAcct, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateCashWithdrawal: %w", err)
	}

	log.Info("cash withdrawal completed",
		"reference", txn.Reference,
		"manager_id", manager.ID,
		"client_id", client.ID,
		"amount", req.Amount,
	)
	return txn, nil
}

// CreateTransfer moves money between two wallets, identified by the
// receiver's phone number.
func (s *Service) CreateTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	sender, err := s.users.GetByID(ctx, req.SenderUserID)
	if err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	receiver, err := s.resolveCounterparty(ctx, req.ReceiverPhone)
	if err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	senderAcct, receiverAcct, err := s.resolveAccounts(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	if err := validateDistinctParties(senderAcct.ID, receiverAcct.ID); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	if err := verifyAccountActive(senderAcct, "sender account"); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}
	if err := verifyAccountActive(receiverAcct, "receiver account"); err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	txn, err := s.recordInternal(ctx, domain.KindTransfer, senderAcct, receiverAcct, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateTransfer: %w", err)
	}

	log.Info("transfer completed",
		"reference", txn.Reference,
		"sender_id", sender.ID,
		"receiver_id", receiver.ID,
		"amount", req.Amount,
	)
	return txn, nil
}

// CreateCardPayment settles a card-present purchase: the terminal presents
// the card token, and the cardholder's wallet pays the merchant's.
func (s *Service) CreateCardPayment(ctx context.Context, req CardPaymentRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}

	merchant, err := s.users.GetByID(ctx, req.MerchantUserID)
	if err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}

	card, err := s.cards.GetByToken(ctx, req.CardToken)
	if err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}
	if card.Locked {
		return nil, fmt.Errorf("CreateCardPayment: %w", domain.ErrCardLocked)
	}

	cardholderAcct, merchantAcct, err := s.resolveAccounts(ctx, card.UserID, merchant.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}
	if err := validateDistinctParties(cardholderAcct.ID, merchantAcct.ID); err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}
	if err := verifyAccountActive(cardholderAcct, "cardholder account"); err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}
	if err := verifyAccountActive(merchantAcct, "merchant account"); err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}

	txn, err := s.recordInternal(ctx, domain.KindPayment, cardholderAcct, merchantAcct, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateCardPayment: %w", err)
	}

	log.Info("card payment completed",
		"reference", txn.Reference,
		"card_id", card.ID,
		"merchant_id", merchant.ID,
		"amount", req.Amount,
	)
	return txn, nil
}

// resolveCounterparty looks the other party up by phone, translating a miss
// into ErrRecipientNotFound so callers cannot probe which phones exist
// through a different error shape.
func (s *Service) resolveCounterparty(ctx context.Context, phone string) (*domain.User, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("resolveCounterparty: %w", domain.ErrRecipientNotFound)
		}
		return nil, fmt.Errorf("resolveCounterparty: %w", err)
	}
	return u, nil
}

func (s *Service) resolveAccounts(ctx context.Context, fromUserID, toUserID uuid.UUID) (*domain.Account, *domain.Account, error) {
	from, err := s.accounts.GetByUserID(ctx, fromUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolveAccounts: sender: %w", err)
	}
	to, err := s.accounts.GetByUserID(ctx, toUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolveAccounts: receiver: %w", err)
	}
	return from, to, nil
}

// recordInternal inserts the completed row and moves the balance in one
// database transaction.
func (s *Service) recordInternal(ctx context.Context, kind domain.TransactionKind, from, to *domain.Account, amount int64) (*domain.Transaction, error) {
	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:                uuid.New(),
		Kind:              kind,
		Status:            domain.StatusCompleted,
		Amount:            amount,
		SenderAccountID:   &from.ID,
		ReceiverAccountID: &to.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
		CompletedAt:       &now,
	}

	err := s.createTransaction(ctx, txn, func(tx *sql.Tx) error {
		return s.ledger.Move(ctx, tx, txn.ID, from.ID, to.ID, amount)
	})
	if err != nil {
		return nil, fmt.Errorf("recordInternal: %w", err)
	}

	s.metrics.ObserveTransaction(kind, domain.StatusCompleted)
	return txn, nil
}
