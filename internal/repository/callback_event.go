package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fkash/fkash-backend/internal/domain"
)

const callbackEventColumns = `id, reference, payload, disposition, received_at`

type CallbackEventRepository struct {
	db *sql.DB
}

func NewCallbackEventRepository(db *sql.DB) *CallbackEventRepository {
	return &CallbackEventRepository{db: db}
}

func (r *CallbackEventRepository) Create(ctx context.Context, event *domain.CallbackEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO callback_events (id, reference, payload, disposition, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Reference, event.Payload, event.Disposition, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CallbackEventRepository) GetByReference(ctx context.Context, reference string) ([]domain.CallbackEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callbackEventColumns+` FROM callback_events
		WHERE reference = $1 ORDER BY received_at`, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	defer rows.Close()

	var events []domain.CallbackEvent
	for rows.Next() {
		e, err := scanCallbackEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByReference: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByReference: rows: %w", err)
	}
	return events, nil
}

func scanCallbackEvent(s scanner) (*domain.CallbackEvent, error) {
	var e domain.CallbackEvent
	err := s.Scan(
		&e.ID, &e.Reference, &e.Payload, &e.Disposition, &e.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
