package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/pkg/clock"
)

func TestJobRun_SwallowsAndLogsFailures(t *testing.T) {
	f := newJobFixture(t, Options{})
	f.store.FailQueries(errors.New("store unreachable"))

	assert.NotPanics(t, func() { f.jobs.MarkAbsent.Run(context.Background()) })

	assert.Equal(t, []string{"mark_absent:failure"}, f.recorder.runs)
	assert.Contains(t, f.logs.String(), `"error_code":"query_failed"`)
	assert.Contains(t, f.logs.String(), `"job":"mark_absent"`)
	assert.Contains(t, f.logs.String(), `"run_id"`)
}

func TestJobRun_UsesClockOncePerRun(t *testing.T) {
	calls := 0
	f := newJobFixture(t, Options{Clock: func() time.Time {
		calls++
		return baseTime
	}})
	f.store.PutEvent(soonEvent("e1", baseTime.Add(-time.Second)))
	f.store.PutParticipantEvent(participant("u1", "e1", entities.ParticipantAwaiting))

	f.jobs.Activate.Run(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"activate:success"}, f.recorder.runs)
	assert.Equal(t, 1, f.recorder.transitioned["activate/events"])
	assert.Equal(t, 1, f.recorder.transitioned["activate/participant_events"])
	assert.Contains(t, f.logs.String(), `"transitioned":1`)
}

func TestJobRun_ReportsNoop(t *testing.T) {
	f := newJobFixture(t, Options{})

	f.jobs.End.Run(context.Background())

	assert.Equal(t, []string{"end:noop"}, f.recorder.runs)
	assert.Contains(t, f.logs.String(), `"level":"DEBUG"`)
}

func TestJobRun_RecoversPanics(t *testing.T) {
	f := newJobFixture(t, Options{Clock: func() time.Time { panic("clock unavailable") }})

	assert.NotPanics(t, func() { f.jobs.Activate.Run(context.Background()) })
	assert.Equal(t, []string{"activate:failure"}, f.recorder.runs)
}

func TestNewJobSet(t *testing.T) {
	_, err := NewJobSet(nil, Options{})
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)

	f := newJobFixture(t, Options{Clock: clock.Fixed(baseTime)})
	names := make([]string, 0, 4)
	for _, job := range f.jobs.All() {
		names = append(names, job.Name())
	}
	assert.Equal(t, JobNames, names)

	job, err := f.jobs.Lookup(JobMarkOverdue)
	require.NoError(t, err)
	assert.Same(t, f.jobs.MarkOverdue, job)

	_, err = f.jobs.Lookup("rollback")
	assert.ErrorIs(t, err, domain.ErrUnknownJob)
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{}.normalized()

	assert.Equal(t, DefaultChunkSize, opts.ChunkSize)
	assert.Equal(t, DefaultOverdueWindow, opts.OverdueWindow)
	assert.Equal(t, DefaultAbsentWindow, opts.AbsentWindow)
	assert.Equal(t, DefaultRunTimeout, opts.RunTimeout)
	assert.NotNil(t, opts.Clock)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Recorder)
}

func TestJobRun_CompletesWhenCancelledMidRun(t *testing.T) {
	f := newJobFixture(t, Options{})
	f.store.PutEvent(soonEvent("e1", baseTime.Add(-time.Second)))
	f.store.PutParticipantEvent(participant("u1", "e1", entities.ParticipantAwaiting))
	ctx, cancel := context.WithCancel(context.Background())
	f.store.BeforeCommit(func(call int) {
		if call == 1 {
			cancel()
		}
	})

	f.jobs.Activate.Run(ctx)

	e, _ := f.store.Event("e1")
	assert.Equal(t, entities.EventActive, e.Status)
	p, _ := f.store.ParticipantEvent("u1", "e1")
	assert.Equal(t, entities.ParticipantActive, p.Status, "the committed event still reaches its participants")
	assert.Equal(t, []string{"activate:success"}, f.recorder.runs)
}

func TestJobRun_BoundedByRunTimeout(t *testing.T) {
	f := newJobFixture(t, Options{RunTimeout: time.Millisecond})
	f.store.PutEvent(soonEvent("e1", baseTime.Add(-time.Second)))
	f.store.PutParticipantEvent(participant("u1", "e1", entities.ParticipantAwaiting))
	f.store.BeforeCommit(func(int) { time.Sleep(20 * time.Millisecond) })

	f.jobs.Activate.Run(context.Background())

	assert.Equal(t, []string{"activate:failure"}, f.recorder.runs)
	p, _ := f.store.ParticipantEvent("u1", "e1")
	assert.Equal(t, entities.ParticipantAwaiting, p.Status)
}
