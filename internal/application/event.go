package application

import (
	"context"
	"errors"
	"time"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

// ActivateJob moves soon events whose start time has passed to active, then
// moves their awaiting participant rows to active.
type ActivateJob struct {
	runner
	events     output.EventRepository
	writer     *ChunkedWriter
	propagator *PropagationEngine
}

func (j *ActivateJob) Run(ctx context.Context) {
	j.run(ctx, j.Reconcile)
}

// Reconcile performs one activation pass judged against now.
func (j *ActivateJob) Reconcile(ctx context.Context, now time.Time) (Report, error) {
	return transitionEvents(ctx, eventTransition{
		job:        j.name,
		events:     j.events,
		writer:     j.writer,
		propagator: j.propagator,
		from:       entities.EventSoon,
		to:         entities.EventActive,
		field:      output.EventStartTime,
		dueTime:    func(e entities.Event) time.Time { return e.StartTime },
		depFrom:    entities.ParticipantAwaiting,
		depTo:      entities.ParticipantActive,
	}, NewTimeGate(now))
}

// EndJob moves active events whose end time has passed to ended, then moves
// their active participant rows to ended, stamping endedTime.
type EndJob struct {
	runner
	events     output.EventRepository
	writer     *ChunkedWriter
	propagator *PropagationEngine
}

func (j *EndJob) Run(ctx context.Context) {
	j.run(ctx, j.Reconcile)
}

// Reconcile performs one end pass judged against now.
func (j *EndJob) Reconcile(ctx context.Context, now time.Time) (Report, error) {
	gate := NewTimeGate(now)
	return transitionEvents(ctx, eventTransition{
		job:        j.name,
		events:     j.events,
		writer:     j.writer,
		propagator: j.propagator,
		from:       entities.EventActive,
		to:         entities.EventEnded,
		field:      output.EventEndTime,
		dueTime:    func(e entities.Event) time.Time { return e.EndTime },
		depFrom:    entities.ParticipantActive,
		depTo:      entities.ParticipantEnded,
		depExtra:   entities.Delta{EndedTime: gate.Now()},
	}, gate)
}

type eventTransition struct {
	job        string
	events     output.EventRepository
	writer     *ChunkedWriter
	propagator *PropagationEngine
	from, to   entities.EventStatus
	field      output.EventTimeField
	dueTime    func(entities.Event) time.Time
	depFrom    entities.ParticipantStatus
	depTo      entities.ParticipantStatus
	depExtra   entities.Delta
}

// transitionEvents rewrites due events and propagates to their dependents.
// Propagation runs for every event whose chunk committed, even when a later
// chunk failed: those events no longer match the predicate, so the next run
// would not find them again.
func transitionEvents(ctx context.Context, t eventTransition, gate TimeGate) (Report, error) {
	var report Report
	found, err := t.events.FindDueEvents(ctx, t.from, t.field, gate.Now())
	if err != nil {
		return report, &domain.QueryError{Job: t.job, Op: "find due events", Err: err}
	}

	updates := make([]entities.Update, 0, len(found))
	ids := make([]string, 0, len(found))
	for _, e := range found {
		if e.Status != t.from || !gate.IsDue(t.dueTime(e)) {
			continue
		}
		updates = append(updates, entities.Update{
			Ref:   entities.EventRef(e.ID),
			From:  string(t.from),
			Delta: entities.Delta{Status: string(t.to)},
		})
		ids = append(ids, e.ID)
	}
	report.Matched = len(updates)
	if len(updates) == 0 {
		return report, nil
	}

	wr, writeErr := t.writer.Apply(ctx, updates)
	report.Transitioned = wr.Applied
	if wr.Committed == 0 {
		return report, writeErr
	}

	pr, propErr := t.propagator.Propagate(ctx, ids[:wr.Committed], t.depFrom, t.depTo, t.depExtra)
	report.Propagated = pr.Updated
	return report, errors.Join(writeErr, propErr)
}
