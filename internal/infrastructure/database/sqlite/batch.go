package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
)

const (
	updateEventSQL = `
UPDATE events
SET status = COALESCE(?, status), updated_at = ?
WHERE id = ? AND status = ?`

	updateParticipantEventSQL = `
UPDATE participant_events
SET status = COALESCE(?, status),
    ended_time = COALESCE(?, ended_time),
    overdue_time = COALESCE(?, overdue_time),
    updated_at = ?
WHERE user_id = ? AND event_id = ? AND status = ?`
)

// CommitGroup applies every update in one transaction. Rows whose status no
// longer matches Update.From are left untouched.
func (s *Store) CommitGroup(ctx context.Context, updates []entities.Update) (int, error) {
	for _, u := range updates {
		switch u.Ref.Collection {
		case entities.CollectionEvents, entities.CollectionParticipantEvents:
		default:
			return 0, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, u.Ref.Collection)
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin commit group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMicros(s.now())
	applied := 0
	for _, u := range updates {
		status := sql.NullString{String: u.Delta.Status, Valid: u.Delta.Status != ""}
		var res sql.Result
		if u.Ref.Collection == entities.CollectionEvents {
			res, err = tx.ExecContext(ctx, updateEventSQL, status, now, u.Ref.ID, u.From)
		} else {
			res, err = tx.ExecContext(ctx, updateParticipantEventSQL,
				status, nullMicros(u.Delta.EndedTime), nullMicros(u.Delta.OverdueTime), now,
				u.Ref.UserID, u.Ref.ID, u.From)
		}
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", u.Ref, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected %s: %w", u.Ref, err)
		}
		applied += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit group: %w", err)
	}
	return applied, nil
}
