package application

import (
	"context"
	"time"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

// MarkOverdueJob moves ended participant rows that have not been checked in
// within the overdue window to overdue.
type MarkOverdueJob struct {
	runner
	participants output.ParticipantEventRepository
	writer       *ChunkedWriter
	window       time.Duration
}

func (j *MarkOverdueJob) Run(ctx context.Context) {
	j.run(ctx, j.Reconcile)
}

func (j *MarkOverdueJob) Reconcile(ctx context.Context, now time.Time) (Report, error) {
	gate := NewTimeGate(now)
	return transitionParticipants(ctx, participantTransition{
		job:          j.name,
		participants: j.participants,
		writer:       j.writer,
		from:         entities.ParticipantEnded,
		to:           entities.ParticipantOverdue,
		field:        output.ParticipantEndedTime,
		since:        func(p entities.ParticipantEvent) time.Time { return p.EndedTime },
		window:       j.window,
		extra:        entities.Delta{OverdueTime: gate.Now()},
	}, gate)
}

// MarkAbsentJob moves overdue participant rows that stayed overdue for the
// absent window to absent. Absent is terminal.
type MarkAbsentJob struct {
	runner
	participants output.ParticipantEventRepository
	writer       *ChunkedWriter
	window       time.Duration
}

func (j *MarkAbsentJob) Run(ctx context.Context) {
	j.run(ctx, j.Reconcile)
}

func (j *MarkAbsentJob) Reconcile(ctx context.Context, now time.Time) (Report, error) {
	return transitionParticipants(ctx, participantTransition{
		job:          j.name,
		participants: j.participants,
		writer:       j.writer,
		from:         entities.ParticipantOverdue,
		to:           entities.ParticipantAbsent,
		field:        output.ParticipantOverdueTime,
		since:        func(p entities.ParticipantEvent) time.Time { return p.OverdueTime },
		window:       j.window,
	}, NewTimeGate(now))
}

type participantTransition struct {
	job          string
	participants output.ParticipantEventRepository
	writer       *ChunkedWriter
	from, to     entities.ParticipantStatus
	field        output.ParticipantTimeField
	since        func(entities.ParticipantEvent) time.Time
	window       time.Duration
	extra        entities.Delta
}

func transitionParticipants(ctx context.Context, t participantTransition, gate TimeGate) (Report, error) {
	var report Report
	threshold := gate.StalenessThreshold(t.window)
	rows, err := t.participants.FindStaleParticipantEvents(ctx, t.from, t.field, threshold)
	if err != nil {
		return report, &domain.QueryError{Job: t.job, Op: "find stale participant events", Err: err}
	}

	delta := t.extra
	delta.Status = string(t.to)
	updates := make([]entities.Update, 0, len(rows))
	for _, row := range rows {
		if row.Status != t.from || !gate.HasDwelt(t.since(row), t.window) {
			continue
		}
		updates = append(updates, entities.Update{
			Ref:   entities.ParticipantEventRef(row.UserID, row.EventID),
			From:  string(t.from),
			Delta: delta,
		})
	}
	report.Matched = len(updates)
	if len(updates) == 0 {
		return report, nil
	}

	wr, err := t.writer.Apply(ctx, updates)
	report.Transitioned = wr.Applied
	return report, err
}
