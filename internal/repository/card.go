package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/fkash/fkash-backend/internal/domain"
)

const cardColumns = `id, user_id, physical_token, virtual_token, locked, created_at, updated_at`

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *domain.NFCCard) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nfc_cards (id, user_id, physical_token, virtual_token, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		card.ID, card.UserID, card.PhysicalToken, card.VirtualToken,
		card.Locked, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrCardExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NFCCard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM nfc_cards WHERE id = $1`, id,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrCardNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

// GetByToken resolves a card by either its physical or its virtual token;
// merchant terminals only ever see the virtual one.
func (r *CardRepository) GetByToken(ctx context.Context, token string) (*domain.NFCCard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM nfc_cards
		WHERE physical_token = $1 OR virtual_token::text = lower($1)`, token,
	)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByToken: %w", domain.ErrCardNotFound)
		}
		return nil, fmt.Errorf("GetByToken: %w", err)
	}
	return c, nil
}

func (r *CardRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.NFCCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM nfc_cards WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var cards []domain.NFCCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return cards, nil
}

func (r *CardRepository) SetLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nfc_cards SET locked = $1, updated_at = now() WHERE id = $2`,
		locked, id,
	)
	if err != nil {
		return fmt.Errorf("SetLocked: %w", err)
	}
	return requireCardRow(res, "SetLocked")
}

func (r *CardRepository) UpdateVirtualToken(ctx context.Context, id uuid.UUID, token uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nfc_cards SET virtual_token = $1, updated_at = now() WHERE id = $2`,
		token, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateVirtualToken: %w", err)
	}
	return requireCardRow(res, "UpdateVirtualToken")
}

func requireCardRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrCardNotFound)
	}
	return nil
}

func scanCard(s scanner) (*domain.NFCCard, error) {
	var c domain.NFCCard
	err := s.Scan(
		&c.ID, &c.UserID, &c.PhysicalToken, &c.VirtualToken,
		&c.Locked, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
