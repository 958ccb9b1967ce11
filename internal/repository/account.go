package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/fkash/fkash-backend/internal/domain"
)

const accountColumns = `id, user_id, balance, status, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.UserID, account.Balance, account.Status,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Debit decrements the balance by amount as a single guarded statement, so
// concurrent debits of the same account serialize on the row without lost
// updates. The status lives in the guard too: a freeze committed after the
// service-level check but before this statement still blocks the debit.
// When no row qualifies, a follow-up read inside the same transaction tells
// a missing account, a non-active one, and insufficient funds apart.
func (r *AccountRepository) Debit(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2 AND status = 'active'`,
		id, amount,
	)
	if err != nil {
		return fmt.Errorf("Debit: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Debit: rows affected: %w", err)
	}
	if rows == 0 {
		var status domain.AccountStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM accounts WHERE id = $1`, id,
		).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("Debit: %w", domain.ErrAccountNotFound)
		case err != nil:
			return fmt.Errorf("Debit: status check: %w", err)
		}
		switch status {
		case domain.AccountStatusFrozen:
			return fmt.Errorf("Debit: %w", domain.ErrAccountFrozen)
		case domain.AccountStatusClosed:
			return fmt.Errorf("Debit: %w", domain.ErrAccountClosed)
		}
		return fmt.Errorf("Debit: %w", domain.ErrInsufficientFunds)
	}
	return nil
}

// Credit increments the balance by amount with the same relative-increment
// semantics as Debit.
func (r *AccountRepository) Credit(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = now()
		WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return fmt.Errorf("Credit: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Credit: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Credit: %w", domain.ErrAccountNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.UserID, &a.Balance, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
