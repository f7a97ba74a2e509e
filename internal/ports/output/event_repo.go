package output

import (
	"context"
	"time"

	"reconciler/internal/domain/entities"
)

// EventTimeField names the Event timestamp a due query compares against now.
type EventTimeField string

const (
	EventStartTime EventTimeField = "start_time"
	EventEndTime   EventTimeField = "end_time"
)

// ParticipantTimeField names the ParticipantEvent timestamp a stale query
// compares against a dwell threshold.
type ParticipantTimeField string

const (
	ParticipantEndedTime   ParticipantTimeField = "ended_time"
	ParticipantOverdueTime ParticipantTimeField = "overdue_time"
)

// EventRepository queries shared event records.
type EventRepository interface {
	// FindDueEvents returns events with the given status whose field is strictly before before.
	FindDueEvents(ctx context.Context, status entities.EventStatus, field EventTimeField, before time.Time) ([]entities.Event, error)
}

// ParticipantEventRepository queries the flattened view of every user's event records.
type ParticipantEventRepository interface {
	// FindStaleParticipantEvents returns rows with the given status whose field is strictly before before.
	FindStaleParticipantEvents(ctx context.Context, status entities.ParticipantStatus, field ParticipantTimeField, before time.Time) ([]entities.ParticipantEvent, error)
	// FindByEventIDAndStatus returns every user's row for eventID that currently has status.
	FindByEventIDAndStatus(ctx context.Context, eventID string, status entities.ParticipantStatus) ([]entities.ParticipantEvent, error)
}

// BatchWriter commits one group of updates atomically.
type BatchWriter interface {
	// CommitGroup applies every update in one atomic write and returns the
	// number of records actually rewritten. Updates whose record no longer has
	// status From are skipped without error.
	CommitGroup(ctx context.Context, updates []entities.Update) (int, error)
}

// Store is everything the reconciliation jobs need from the record store.
type Store interface {
	EventRepository
	ParticipantEventRepository
	BatchWriter
}
