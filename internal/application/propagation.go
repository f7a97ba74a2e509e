package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

// PropagationResult counts the participant rows touched by one Propagate call.
type PropagationResult struct {
	Events  int // distinct event ids processed
	Matched int // rows found still in the from status
	Updated int // rows rewritten to the to status
	Failed  int // event ids whose propagation failed
}

// PropagationEngine re-applies an event transition to every participant's copy
// of that event.
type PropagationEngine struct {
	participants output.ParticipantEventRepository
	writer       *ChunkedWriter
	logger       *slog.Logger
}

func NewPropagationEngine(participants output.ParticipantEventRepository, writer *ChunkedWriter, logger *slog.Logger) *PropagationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropagationEngine{participants: participants, writer: writer, logger: logger}
}

// Propagate moves every participant row of each event id from from to to,
// writing extra alongside the new status. Each id is queried by (id, from), so
// rows already advanced are skipped and a repeated call is a no-op. A failure
// for one id is recorded and the remaining ids are still processed; the
// failures are returned joined, one *domain.PropagationError per id.
func (e *PropagationEngine) Propagate(ctx context.Context, eventIDs []string, from, to entities.ParticipantStatus, extra entities.Delta) (PropagationResult, error) {
	var res PropagationResult
	if from == to || !from.CanAdvanceTo(to) {
		return res, fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, from, to)
	}
	var errs []error
	seen := make(map[string]struct{}, len(eventIDs))
	delta := extra.Merge(entities.Delta{Status: string(to)})

	for _, id := range eventIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		res.Events++

		matched, updated, err := e.propagateOne(ctx, id, from, delta)
		res.Matched += matched
		res.Updated += updated
		if err != nil {
			res.Failed++
			perr := &domain.PropagationError{EventID: id, From: string(from), To: string(to), Err: err}
			e.logger.Error("échec de propagation",
				"event_id", id, "from", from, "to", to,
				"error_code", domain.Code(err), "error", err)
			errs = append(errs, perr)
		}
	}

	e.logger.Info("participations mises à jour",
		"from", from, "to", to,
		"events", res.Events, "matched", res.Matched, "updated", res.Updated, "failed", res.Failed)
	return res, errors.Join(errs...)
}

func (e *PropagationEngine) propagateOne(ctx context.Context, eventID string, from entities.ParticipantStatus, delta entities.Delta) (int, int, error) {
	rows, err := e.participants.FindByEventIDAndStatus(ctx, eventID, from)
	if err != nil {
		return 0, 0, &domain.QueryError{Job: "propagate", Op: "find participant events by event id", Err: err}
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	updates := make([]entities.Update, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, entities.Update{
			Ref:   entities.ParticipantEventRef(row.UserID, row.EventID),
			From:  string(from),
			Delta: delta,
		})
	}
	wr, err := e.writer.Apply(ctx, updates)
	return len(rows), wr.Applied, err
}
