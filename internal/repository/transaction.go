package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/fkash/fkash-backend/internal/domain"
)

const transactionColumns = `id, reference, ref_date, ref_seq, kind, status, amount,
	sender_account_id, receiver_account_id, phone_number, operator_code,
	external_reference, error_message, created_at, updated_at, completed_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts the record inside the caller's transaction. A losing race
// on the reference or daily-sequence uniqueness comes back as
// ErrDuplicateReference so the caller can reallocate and retry.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, reference, ref_date, ref_seq, kind, status, amount,
			sender_account_id, receiver_account_id, phone_number, operator_code,
			external_reference, error_message, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		txn.ID, txn.Reference, txn.RefDate, txn.RefSeq, txn.Kind, txn.Status, txn.Amount,
		txn.SenderAccountID, txn.ReceiverAccountID, txn.PhoneNumber, txn.OperatorCode,
		txn.ExternalReference, txn.ErrorMessage, txn.CreatedAt, txn.UpdatedAt, txn.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

// GetByReferenceForUpdate locks the row so concurrent callbacks for the same
// reference serialize; the second caller then observes the terminal status
// written by the first.
func (r *TransactionRepository) GetByReferenceForUpdate(ctx context.Context, tx *sql.Tx, reference string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReferenceForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReferenceForUpdate: %w", err)
	}
	return t, nil
}

// MaxSequenceForDate reads the highest allocated sequence for the date inside
// the caller's transaction, so the read and the insert that consumes the next
// sequence share one atomic scope.
func (r *TransactionRepository) MaxSequenceForDate(ctx context.Context, tx *sql.Tx, day time.Time) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ref_seq), 0) FROM transactions WHERE ref_date = $1`, day,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("MaxSequenceForDate: %w", err)
	}
	return max, nil
}

// ListByAccount returns the merged sent and received history for an account,
// newest first, with the total row count for pagination.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		WHERE sender_account_id = $1 OR receiver_account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE sender_account_id = $1 OR receiver_account_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return txns, total, nil
}

// ListStuckProcessing returns operator-mediated transactions that have sat in
// processing since before the cutoff, oldest first, for the status poller.
func (r *TransactionRepository) ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 AND kind IN ($2, $3)
			AND external_reference IS NOT NULL AND updated_at < $4
		ORDER BY updated_at LIMIT $5`,
		domain.StatusProcessing, domain.KindDepositMomo, domain.KindWithdrawMomo,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStuckProcessing: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStuckProcessing: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListStuckProcessing: rows: %w", err)
	}
	return txns, nil
}

// MarkProcessing moves a pending record to processing and stores the operator
// reference. Zero rows means the record already left pending, reported as
// ErrTransactionTerminal so the caller can re-read and reconcile.
func (r *TransactionRepository) MarkProcessing(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalRef string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, external_reference = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		domain.StatusProcessing, externalRef, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkProcessing: %w", err)
	}
	return requireTransition(res, "MarkProcessing")
}

func (r *TransactionRepository) MarkCompleted(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalRef *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1,
			external_reference = COALESCE($2, external_reference),
			completed_at = now(), updated_at = now()
		WHERE id = $3 AND status IN ($4, $5)`,
		domain.StatusCompleted, externalRef, id, domain.StatusPending, domain.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return requireTransition(res, "MarkCompleted")
}

func (r *TransactionRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, errorMessage string, externalRef *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, error_message = $2,
			external_reference = COALESCE($3, external_reference),
			completed_at = now(), updated_at = now()
		WHERE id = $4 AND status IN ($5, $6)`,
		domain.StatusFailed, errorMessage, externalRef, id,
		domain.StatusPending, domain.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return requireTransition(res, "MarkFailed")
}

// requireTransition maps a zero-row status update to ErrTransactionTerminal:
// statuses only move forward, so a non-matching WHERE means the record is
// already terminal.
func requireTransition(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrTransactionTerminal)
	}
	return nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var sender, receiver uuid.NullUUID

	err := s.Scan(
		&t.ID, &t.Reference, &t.RefDate, &t.RefSeq, &t.Kind, &t.Status, &t.Amount,
		&sender, &receiver, &t.PhoneNumber, &t.OperatorCode,
		&t.ExternalReference, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if sender.Valid {
		t.SenderAccountID = &sender.UUID
	}
	if receiver.Valid {
		t.ReceiverAccountID = &receiver.UUID
	}
	return &t, nil
}
