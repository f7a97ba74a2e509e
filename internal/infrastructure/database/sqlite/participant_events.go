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

const participantColumns = "user_id, event_id, status, ended_time, overdue_time, created_at, updated_at"

func (s *Store) FindStaleParticipantEvents(ctx context.Context, status entities.ParticipantStatus, field output.ParticipantTimeField, before time.Time) ([]entities.ParticipantEvent, error) {
	var column string
	switch field {
	case output.ParticipantEndedTime:
		column = "ended_time"
	case output.ParticipantOverdueTime:
		column = "overdue_time"
	default:
		return nil, fmt.Errorf("unknown participant time field %q", field)
	}
	return s.queryParticipantEvents(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE status = ? AND "+column+" < ? ORDER BY event_id, user_id",
		string(status), toMicros(before))
}

func (s *Store) FindByEventIDAndStatus(ctx context.Context, eventID string, status entities.ParticipantStatus) ([]entities.ParticipantEvent, error) {
	return s.queryParticipantEvents(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE event_id = ? AND status = ? ORDER BY user_id",
		eventID, string(status))
}

func (s *Store) queryParticipantEvents(ctx context.Context, query string, args ...any) ([]entities.ParticipantEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query participant events: %w", err)
	}
	defer rows.Close()

	var out []entities.ParticipantEvent
	for rows.Next() {
		p, err := scanParticipantEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant events: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant events: %w", err)
	}
	return out, nil
}

// CreateParticipantEvent inserts p and fills its CreatedAt and UpdatedAt.
func (s *Store) CreateParticipantEvent(ctx context.Context, p *entities.ParticipantEvent) error {
	if p.UserID == "" || p.EventID == "" {
		return fmt.Errorf("user id and event id are required")
	}
	now := s.now()
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO participant_events (user_id, event_id, status, ended_time, overdue_time, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.EventID, string(p.Status),
		nullMicros(p.EndedTime), nullMicros(p.OverdueTime), toMicros(now), toMicros(now))
	if err != nil {
		return fmt.Errorf("create participant event: %w", err)
	}
	p.CreatedAt = fromMicros(toMicros(now))
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (s *Store) GetParticipantEvent(ctx context.Context, userID, eventID string) (*entities.ParticipantEvent, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE user_id = ? AND event_id = ?",
		userID, eventID)
	p, err := scanParticipantEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get participant event %s/%s: %w", userID, eventID, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get participant event: %w", err)
	}
	return &p, nil
}

func scanParticipantEvent(row scanner) (entities.ParticipantEvent, error) {
	var p entities.ParticipantEvent
	var status string
	var ended, overdue sql.NullInt64
	var created, updated int64
	if err := row.Scan(&p.UserID, &p.EventID, &status, &ended, &overdue, &created, &updated); err != nil {
		return entities.ParticipantEvent{}, err
	}
	p.Status = entities.ParticipantStatus(status)
	p.EndedTime = fromNullMicros(ended)
	p.OverdueTime = fromNullMicros(overdue)
	p.CreatedAt = fromMicros(created)
	p.UpdatedAt = fromMicros(updated)
	return p, nil
}
