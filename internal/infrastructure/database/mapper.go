package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

const (
	eventColumns       = "id, status, start_time, end_time, created_at, updated_at"
	participantColumns = "user_id, event_id, status, ended_time, overdue_time, created_at, updated_at"
)

// pgtypeTimestamptzToTime returns t.Time in UTC when Valid, else zero time.
func pgtypeTimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// timeToPgtypeTimestamptz maps the zero time to NULL.
func timeToPgtypeTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func stringToPgtypeText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func eventTimeColumn(field output.EventTimeField) (string, error) {
	switch field {
	case output.EventStartTime:
		return "start_time", nil
	case output.EventEndTime:
		return "end_time", nil
	default:
		return "", fmt.Errorf("unknown event time field %q", field)
	}
}

func participantTimeColumn(field output.ParticipantTimeField) (string, error) {
	switch field {
	case output.ParticipantEndedTime:
		return "ended_time", nil
	case output.ParticipantOverdueTime:
		return "overdue_time", nil
	default:
		return "", fmt.Errorf("unknown participant time field %q", field)
	}
}

func scanEvent(row pgx.CollectableRow) (entities.Event, error) {
	var e entities.Event
	var status string
	var start, end, created, updated pgtype.Timestamptz
	if err := row.Scan(&e.ID, &status, &start, &end, &created, &updated); err != nil {
		return entities.Event{}, err
	}
	e.Status = entities.EventStatus(status)
	e.StartTime = pgtypeTimestamptzToTime(start)
	e.EndTime = pgtypeTimestamptzToTime(end)
	e.CreatedAt = pgtypeTimestamptzToTime(created)
	e.UpdatedAt = pgtypeTimestamptzToTime(updated)
	return e, nil
}

func scanParticipantEvent(row pgx.CollectableRow) (entities.ParticipantEvent, error) {
	var p entities.ParticipantEvent
	var status string
	var ended, overdue, created, updated pgtype.Timestamptz
	if err := row.Scan(&p.UserID, &p.EventID, &status, &ended, &overdue, &created, &updated); err != nil {
		return entities.ParticipantEvent{}, err
	}
	p.Status = entities.ParticipantStatus(status)
	p.EndedTime = pgtypeTimestamptzToTime(ended)
	p.OverdueTime = pgtypeTimestamptzToTime(overdue)
	p.CreatedAt = pgtypeTimestamptzToTime(created)
	p.UpdatedAt = pgtypeTimestamptzToTime(updated)
	return p, nil
}
