package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

func (s *Store) FindDueEvents(ctx context.Context, status entities.EventStatus, field output.EventTimeField, before time.Time) ([]entities.Event, error) {
	column, err := eventTimeColumn(field)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE status = $1 AND "+column+" < $2 ORDER BY id",
		string(status), before)
	if err != nil {
		return nil, fmt.Errorf("find due events: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan due events: %w", err)
	}
	return out, nil
}

// CreateEvent inserts event and fills its CreatedAt and UpdatedAt.
func (s *Store) CreateEvent(ctx context.Context, event *entities.Event) error {
	err := s.pool.QueryRow(ctx, `
INSERT INTO events (id, status, start_time, end_time)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`,
		event.ID, string(event.Status), event.StartTime, event.EndTime,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*entities.Event, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEvent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get event %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}
