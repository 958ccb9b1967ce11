package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/reference"
)

// createTransaction allocates a reference and inserts txn inside one database
// transaction, with inTx (the balance work) sharing the same atomic scope.
// Two writers racing for the same daily sequence collide on the sequence
// uniqueness constraint; the loser rolls back wholesale and retries with a
// freshly read sequence, up to the allocation bound.
func (s *Service) createTransaction(ctx context.Context, txn *domain.Transaction, inTx func(tx *sql.Tx) error) error {
	log := logging.FromContext(ctx)

	for attempt := 1; attempt <= reference.MaxAttempts; attempt++ {
		err := s.tryCreateTransaction(ctx, txn, inTx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateReference) {
			return err
		}
		s.metrics.ObserveReferenceRetry()
		log.Warn("reference collision, reallocating",
			"reference", txn.Reference,
			"attempt", attempt,
		)
	}
	return fmt.Errorf("createTransaction: %w", domain.ErrReferenceExhausted)
}

func (s *Service) tryCreateTransaction(ctx context.Context, txn *domain.Transaction, inTx func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tryCreateTransaction: begin tx: %w", err)
	}
	defer tx.Rollback()

	day := reference.Day(txn.CreatedAt)
	seq, err := s.transactions.MaxSequenceForDate(ctx, tx, day)
	if err != nil {
		return fmt.Errorf("tryCreateTransaction: %w", err)
	}

	ref, err := reference.New(day, seq+1)
	if err != nil {
		return fmt.Errorf("tryCreateTransaction: %w", err)
	}
	txn.Reference = ref
	txn.RefDate = day
	txn.RefSeq = seq + 1

	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		return fmt.Errorf("tryCreateTransaction: %w", err)
	}

	if inTx != nil {
		if err := inTx(tx); err != nil {
			return fmt.Errorf("tryCreateTransaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tryCreateTransaction: commit: %w", err)
	}
	return nil
}

// markProcessing records gateway acceptance in a short transaction of its
// own. ErrTransactionTerminal here means the operator's callback beat us to
// the record; the settled state wins and the caller re-reads.
func (s *Service) markProcessing(ctx context.Context, id uuid.UUID, externalRef string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("markProcessing: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transactions.MarkProcessing(ctx, tx, id, externalRef); err != nil {
		return fmt.Errorf("markProcessing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("markProcessing: commit: %w", err)
	}
	return nil
}

func (s *Service) markCompleted(ctx context.Context, id uuid.UUID, externalRef *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("markCompleted: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transactions.MarkCompleted(ctx, tx, id, externalRef); err != nil {
		return fmt.Errorf("markCompleted: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("markCompleted: commit: %w", err)
	}
	return nil
}

func (s *Service) markFailed(ctx context.Context, id uuid.UUID, reason string, externalRef *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("markFailed: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transactions.MarkFailed(ctx, tx, id, reason, externalRef); err != nil {
		return fmt.Errorf("markFailed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("markFailed: commit: %w", err)
	}
	return nil
}

// failWithRefund marks the withdrawal failed and credits the provisional
// debit back in one atomic step. The status transition is the guard: when the
// record already went terminal (a callback won the race) MarkFailed reports
// ErrTransactionTerminal, the refund never runs, and whoever moved it to
// terminal owned the compensation decision.
func (s *Service) failWithRefund(ctx context.Context, txn *domain.Transaction, reason string, externalRef *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failWithRefund: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transactions.MarkFailed(ctx, tx, txn.ID, reason, externalRef); err != nil {
		return fmt.Errorf("failWithRefund: %w", err)
	}

	if err := s.ledger.Credit(ctx, tx, txn.ID, *txn.SenderAccountID, txn.Amount); err != nil {
		return fmt.Errorf("failWithRefund: refund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failWithRefund: commit: %w", err)
	}
	return nil
}
