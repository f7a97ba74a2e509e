package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
)

const (
	updateEventSQL = `
UPDATE events
SET status = COALESCE($2::text, status), updated_at = now()
WHERE id = $1 AND status = $3`

	updateParticipantEventSQL = `
UPDATE participant_events
SET status = COALESCE($3::text, status),
    ended_time = COALESCE($4::timestamptz, ended_time),
    overdue_time = COALESCE($5::timestamptz, overdue_time),
    updated_at = now()
WHERE user_id = $1 AND event_id = $2 AND status = $6`
)

// CommitGroup sends every update as one batch inside a single transaction.
// Rows whose status no longer matches Update.From are left untouched.
func (s *Store) CommitGroup(ctx context.Context, updates []entities.Update) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		switch u.Ref.Collection {
		case entities.CollectionEvents:
			batch.Queue(updateEventSQL, u.Ref.ID, stringToPgtypeText(u.Delta.Status), u.From)
		case entities.CollectionParticipantEvents:
			batch.Queue(updateParticipantEventSQL,
				u.Ref.UserID, u.Ref.ID,
				stringToPgtypeText(u.Delta.Status),
				timeToPgtypeTimestamptz(u.Delta.EndedTime),
				timeToPgtypeTimestamptz(u.Delta.OverdueTime),
				u.From)
		default:
			return 0, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, u.Ref.Collection)
		}
	}

	applied := 0
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for _, u := range updates {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("update %s: %w", u.Ref, err)
			}
			applied += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("commit group: %w", err)
	}
	return applied, nil
}
