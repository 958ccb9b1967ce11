package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/gateway"
	"github.com/fkash/fkash-backend/internal/logging"
)

// Mobile-money kinds settle asynchronously through the aggregator. The wallet
// credit for a deposit happens only when the operator's callback confirms the
// money: the submission response alone, whatever it claims, never moves a
// balance. A withdrawal debits up front so the funds cannot be spent twice
// while the operator works, and refunds if the operator refuses.

type MomoDepositRequest struct {
	UserID       uuid.UUID
	Amount       int64
	OperatorCode string
	Phone        string
}

type MomoWithdrawalRequest struct {
	UserID       uuid.UUID
	Amount       int64
	OperatorCode string
	Phone        string
}

// CreateMomoDeposit asks the operator to collect req.Amount from the user's
// mobile-money account. The record stays pending/processing until the
// operator confirms; only then is the wallet credited.
func (s *Service) CreateMomoDeposit(ctx context.Context, req MomoDepositRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}
	if err := validateOperator(domain.KindDepositMomo, req.OperatorCode); err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}
	acct, err := s.accounts.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}
	if err := verifyAccountActive(acct, "receiver account"); err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}

	txn := newMomoTransaction(domain.KindDepositMomo, req.Amount, req.OperatorCode, req.Phone)
	txn.ReceiverAccountID = &acct.ID

	if err := s.createTransaction(ctx, txn, nil); err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}

	outcome, err := s.gateway.Submit(ctx, gateway.SubmitRequest{
		Reference:    txn.Reference,
		OperatorCode: req.OperatorCode,
		Amount:       req.Amount,
		Phone:        req.Phone,
	})
	if err != nil {
		// Submit only rejects inputs the checks above should have caught;
		// fail the record so it cannot dangle pending forever.
		if failErr := s.markFailed(ctx, txn.ID, err.Error(), nil); failErr != nil &&
			!errors.Is(failErr, domain.ErrTransactionTerminal) {
			log.Error("marking rejected submission failed",
				"reference", txn.Reference,
				"error", failErr,
			)
		}
		s.metrics.ObserveTransaction(txn.Kind, domain.StatusFailed)
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}

	switch outcome.Kind {
	case gateway.OutcomeRejected, gateway.OutcomeTransientFailure:
		err := s.markFailed(ctx, txn.ID, outcome.Reason, nil)
		if err == nil {
			s.metrics.ObserveTransaction(txn.Kind, domain.StatusFailed)
			return nil, settlementError("CreateMomoDeposit", outcome)
		}
		if !errors.Is(err, domain.ErrTransactionTerminal) {
			return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
		}
		// A callback settled the record before we could; its state wins.
	default:
		// Accepted and processing look the same from here: hold until the
		// operator's callback confirms the collection.
		if err := s.markProcessing(ctx, txn.ID, outcome.ExternalID); err != nil &&
			!errors.Is(err, domain.ErrTransactionTerminal) {
			return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
		}
	}

	fresh, err := s.transactions.GetByID(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoDeposit: %w", err)
	}

	s.metrics.ObserveTransaction(fresh.Kind, fresh.Status)
	log.Info("momo deposit submitted",
		"reference", fresh.Reference,
		"status", string(fresh.Status),
		"operator", req.OperatorCode,
		"amount", req.Amount,
	)
	return fresh, nil
}

// CreateMomoWithdrawal sends req.Amount from the user's wallet to their
// mobile-money account. The wallet is debited in the same transaction that
// records the withdrawal, before the operator is contacted; a refusal
// refunds it.
func (s *Service) CreateMomoWithdrawal(ctx context.Context, req MomoWithdrawalRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := validateAmount(req.Amount, s.config.TxMinAmount, s.config.TxMaxAmount); err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}
	if err := validateOperator(domain.KindWithdrawMomo, req.OperatorCode); err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}
	acct, err := s.accounts.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}
	if err := verifyAccountActive(acct, "sender account"); err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}

	txn := newMomoTransaction(domain.KindWithdrawMomo, req.Amount, req.OperatorCode, req.Phone)
	txn.SenderAccountID = &acct.ID

	err = s.createTransaction(ctx, txn, func(tx *sql.Tx) error {
		return s.ledger.Debit(ctx, tx, txn.ID, acct.ID, req.Amount)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}

	outcome, err := s.gateway.Submit(ctx, gateway.SubmitRequest{
		Reference:    txn.Reference,
		OperatorCode: req.OperatorCode,
		Amount:       req.Amount,
		Phone:        req.Phone,
	})
	if err != nil {
		// The debit is already taken, so a refused submission must give it
		// back, not just fail the record.
		if failErr := s.failWithRefund(ctx, txn, err.Error(), nil); failErr != nil &&
			!errors.Is(failErr, domain.ErrTransactionTerminal) {
			log.Error("refunding rejected submission failed",
				"reference", txn.Reference,
				"error", failErr,
			)
		}
		s.metrics.ObserveTransaction(txn.Kind, domain.StatusFailed)
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}

	switch outcome.Kind {
	case gateway.OutcomeAccepted:
		if err := s.markCompleted(ctx, txn.ID, &outcome.ExternalID); err != nil &&
			!errors.Is(err, domain.ErrTransactionTerminal) {
			return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
		}
	case gateway.OutcomeProcessing:
		if err := s.markProcessing(ctx, txn.ID, outcome.ExternalID); err != nil &&
			!errors.Is(err, domain.ErrTransactionTerminal) {
			return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
		}
	default:
		err := s.failWithRefund(ctx, txn, outcome.Reason, nil)
		if err == nil {
			s.metrics.ObserveTransaction(txn.Kind, domain.StatusFailed)
			return nil, settlementError("CreateMomoWithdrawal", outcome)
		}
		if !errors.Is(err, domain.ErrTransactionTerminal) {
			return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
		}
		// A callback settled the record before we could; no refund from this
		// path, and the settled state wins.
	}

	fresh, err := s.transactions.GetByID(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateMomoWithdrawal: %w", err)
	}

	s.metrics.ObserveTransaction(fresh.Kind, fresh.Status)
	log.Info("momo withdrawal submitted",
		"reference", fresh.Reference,
		"status", string(fresh.Status),
		"operator", req.OperatorCode,
		"amount", req.Amount,
	)
	return fresh, nil
}

func newMomoTransaction(kind domain.TransactionKind, amount int64, operatorCode, phone string) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:           uuid.New(),
		Kind:         kind,
		Status:       domain.StatusPending,
		Amount:       amount,
		PhoneNumber:  &phone,
		OperatorCode: &operatorCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// settlementError maps a failed outcome to the sentinel the transport layer
// translates for clients: a definitive operator refusal reads differently
// from the aggregator being unreachable.
func settlementError(op string, outcome *gateway.Outcome) error {
	if outcome.Kind == gateway.OutcomeRejected {
		return fmt.Errorf("%s: %s: %w", op, outcome.Reason, domain.ErrGatewayRejected)
	}
	return fmt.Errorf("%s: %s: %w", op, outcome.Reason, domain.ErrGatewayUnavailable)
}
