package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

const eventColumns = "id, status, start_time, end_time, created_at, updated_at"

func (s *Store) FindDueEvents(ctx context.Context, status entities.EventStatus, field output.EventTimeField, before time.Time) ([]entities.Event, error) {
	var column string
	switch field {
	case output.EventStartTime:
		column = "start_time"
	case output.EventEndTime:
		column = "end_time"
	default:
		return nil, fmt.Errorf("unknown event time field %q", field)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE status = ? AND "+column+" < ? ORDER BY id",
		string(status), toMicros(before))
	if err != nil {
		return nil, fmt.Errorf("find due events: %w", err)
	}
	defer rows.Close()

	var out []entities.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due events: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due events: %w", err)
	}
	return out, nil
}

// CreateEvent inserts event and fills its CreatedAt and UpdatedAt.
func (s *Store) CreateEvent(ctx context.Context, event *entities.Event) error {
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	now := s.now()
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO events (id, status, start_time, end_time, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Status), toMicros(event.StartTime), toMicros(event.EndTime), toMicros(now), toMicros(now))
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	event.CreatedAt = fromMicros(toMicros(now))
	event.UpdatedAt = event.CreatedAt
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*entities.Event, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get event %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (entities.Event, error) {
	var e entities.Event
	var status string
	var start, end, created, updated int64
	if err := row.Scan(&e.ID, &status, &start, &end, &created, &updated); err != nil {
		return entities.Event{}, err
	}
	e.Status = entities.EventStatus(status)
	e.StartTime = fromMicros(start)
	e.EndTime = fromMicros(end)
	e.CreatedAt = fromMicros(created)
	e.UpdatedAt = fromMicros(updated)
	return e, nil
}
