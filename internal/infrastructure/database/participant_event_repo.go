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

func (s *Store) FindStaleParticipantEvents(ctx context.Context, status entities.ParticipantStatus, field output.ParticipantTimeField, before time.Time) ([]entities.ParticipantEvent, error) {
	column, err := participantTimeColumn(field)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE status = $1 AND "+column+" < $2 ORDER BY event_id, user_id",
		string(status), before)
	if err != nil {
		return nil, fmt.Errorf("find stale participant events: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanParticipantEvent)
	if err != nil {
		return nil, fmt.Errorf("scan stale participant events: %w", err)
	}
	return out, nil
}

func (s *Store) FindByEventIDAndStatus(ctx context.Context, eventID string, status entities.ParticipantStatus) ([]entities.ParticipantEvent, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE event_id = $1 AND status = $2 ORDER BY user_id",
		eventID, string(status))
	if err != nil {
		return nil, fmt.Errorf("get participant events by event id and status: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanParticipantEvent)
	if err != nil {
		return nil, fmt.Errorf("scan participant events: %w", err)
	}
	return out, nil
}

// CreateParticipantEvent inserts p and fills its CreatedAt and UpdatedAt.
func (s *Store) CreateParticipantEvent(ctx context.Context, p *entities.ParticipantEvent) error {
	err := s.pool.QueryRow(ctx, `
INSERT INTO participant_events (user_id, event_id, status, ended_time, overdue_time)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`,
		p.UserID, p.EventID, string(p.Status),
		timeToPgtypeTimestamptz(p.EndedTime), timeToPgtypeTimestamptz(p.OverdueTime),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create participant event: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return nil
}

func (s *Store) GetParticipantEvent(ctx context.Context, userID, eventID string) (*entities.ParticipantEvent, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+participantColumns+" FROM participant_events WHERE user_id = $1 AND event_id = $2",
		userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("get participant event: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanParticipantEvent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get participant event %s/%s: %w", userID, eventID, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get participant event: %w", err)
	}
	return &p, nil
}
