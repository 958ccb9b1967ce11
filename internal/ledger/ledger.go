// Package ledger applies balance movements as guarded relative increments so
// concurrent writers serialize on the account row without lost updates.
// Balances change only through this package, and every movement leaves
// journal entries in the same database transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
)

type accountMutator interface {
	Debit(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64) error
	Credit(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64) error
}

type entryJournal interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
}

type Ledger struct {
	accounts accountMutator
	entries  entryJournal
}

func New(accounts accountMutator, entries entryJournal) *Ledger {
	return &Ledger{accounts: accounts, entries: entries}
}

// Move debits from and credits to inside the caller's transaction. Both legs
// apply or neither does: any failure leaves the transaction poisoned and the
// caller's rollback undoes the debit. The debit statement itself guards
// against overdraft, so a sender with insufficient funds fails before any
// mutation.
func (l *Ledger) Move(ctx context.Context, tx *sql.Tx, transactionID, from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("Move: %w", domain.ErrInvalidAmount)
	}
	if from == to {
		return fmt.Errorf("Move: %w", domain.ErrSelfTransfer)
	}

	if err := l.accounts.Debit(ctx, tx, from, amount); err != nil {
		return fmt.Errorf("Move: %w", err)
	}
	if err := l.accounts.Credit(ctx, tx, to, amount); err != nil {
		return fmt.Errorf("Move: %w", err)
	}
	if err := l.journal(ctx, tx, transactionID, from, domain.EntryTypeDebit, amount); err != nil {
		return fmt.Errorf("Move: %w", err)
	}
	if err := l.journal(ctx, tx, transactionID, to, domain.EntryTypeCredit, amount); err != nil {
		return fmt.Errorf("Move: %w", err)
	}
	return nil
}

// Credit applies a single-sided increase. Only settlement flows use this:
// money entering the float from a confirmed mobile-money deposit, or a
// compensating refund after a failed withdrawal.
func (l *Ledger) Credit(ctx context.Context, tx *sql.Tx, transactionID, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("Credit: %w", domain.ErrInvalidAmount)
	}
	if err := l.accounts.Credit(ctx, tx, id, amount); err != nil {
		return fmt.Errorf("Credit: %w", err)
	}
	if err := l.journal(ctx, tx, transactionID, id, domain.EntryTypeCredit, amount); err != nil {
		return fmt.Errorf("Credit: %w", err)
	}
	return nil
}

// Debit applies a single-sided decrease, used to place the provisional hold
// when a mobile-money withdrawal leaves for the operator.
func (l *Ledger) Debit(ctx context.Context, tx *sql.Tx, transactionID, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("Debit: %w", domain.ErrInvalidAmount)
	}
	if err := l.accounts.Debit(ctx, tx, id, amount); err != nil {
		return fmt.Errorf("Debit: %w", err)
	}
	if err := l.journal(ctx, tx, transactionID, id, domain.EntryTypeDebit, amount); err != nil {
		return fmt.Errorf("Debit: %w", err)
	}
	return nil
}

func (l *Ledger) journal(ctx context.Context, tx *sql.Tx, transactionID, accountID uuid.UUID, entryType domain.EntryType, amount int64) error {
	return l.entries.Create(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: transactionID,
		AccountID:     accountID,
		EntryType:     entryType,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	})
}
