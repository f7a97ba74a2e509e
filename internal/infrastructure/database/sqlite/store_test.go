package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler/internal/application"
	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
	"reconciler/pkg/clock"
)

var baseTime = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconciler.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconciler.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateEvent(context.Background(), &entities.Event{
		ID: "e1", Status: entities.EventSoon, StartTime: baseTime, EndTime: baseTime.Add(time.Hour),
	}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	e, err := store.GetEvent(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, baseTime, e.StartTime)
}

func TestStore_FindDueEvents(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	for _, e := range []entities.Event{
		{ID: "e1", Status: entities.EventSoon, StartTime: baseTime.Add(-time.Microsecond), EndTime: baseTime.Add(time.Hour)},
		{ID: "e2", Status: entities.EventSoon, StartTime: baseTime, EndTime: baseTime.Add(time.Hour)},
		{ID: "e3", Status: entities.EventActive, StartTime: baseTime.Add(-time.Hour), EndTime: baseTime.Add(-time.Second)},
	} {
		require.NoError(t, store.CreateEvent(ctx, &e))
	}

	due, err := store.FindDueEvents(ctx, entities.EventSoon, output.EventStartTime, baseTime)
	require.NoError(t, err)
	require.Len(t, due, 1, "start time equal to now is not due")
	assert.Equal(t, "e1", due[0].ID)

	due, err = store.FindDueEvents(ctx, entities.EventActive, output.EventEndTime, baseTime)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "e3", due[0].ID)

	_, err = store.FindDueEvents(ctx, entities.EventSoon, output.EventTimeField("created_at"), baseTime)
	assert.Error(t, err)
}

func TestStore_FindStaleParticipantEventsSkipsNullTimes(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEvent(ctx, &entities.Event{ID: "e1", Status: entities.EventEnded, StartTime: baseTime, EndTime: baseTime}))
	require.NoError(t, store.CreateParticipantEvent(ctx, &entities.ParticipantEvent{
		UserID: "u1", EventID: "e1", Status: entities.ParticipantEnded, EndedTime: baseTime.Add(-2 * time.Minute),
	}))
	require.NoError(t, store.CreateParticipantEvent(ctx, &entities.ParticipantEvent{
		UserID: "u2", EventID: "e1", Status: entities.ParticipantEnded,
	}))

	stale, err := store.FindStaleParticipantEvents(ctx, entities.ParticipantEnded, output.ParticipantEndedTime, baseTime.Add(-time.Minute))

	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "u1", stale[0].UserID)
	assert.Equal(t, baseTime.Add(-2*time.Minute), stale[0].EndedTime)
	assert.True(t, stale[0].OverdueTime.IsZero())
}

func TestStore_CommitGroupGuardsOnStatus(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEvent(ctx, &entities.Event{ID: "e1", Status: entities.EventEnded, StartTime: baseTime, EndTime: baseTime}))
	require.NoError(t, store.CreateParticipantEvent(ctx, &entities.ParticipantEvent{
		UserID: "u1", EventID: "e1", Status: entities.ParticipantOverdue, OverdueTime: baseTime,
	}))
	update := entities.Update{
		Ref:   entities.ParticipantEventRef("u1", "e1"),
		From:  string(entities.ParticipantEnded),
		Delta: entities.Delta{Status: string(entities.ParticipantOverdue), OverdueTime: baseTime.Add(time.Minute)},
	}

	applied, err := store.CommitGroup(ctx, []entities.Update{update})

	require.NoError(t, err)
	assert.Zero(t, applied)
	p, err := store.GetParticipantEvent(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, baseTime, p.OverdueTime, "a stale write never moves overdueTime")
}

func TestStore_CommitGroupIsAtomic(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, store.CreateEvent(ctx, &entities.Event{ID: id, Status: entities.EventSoon, StartTime: baseTime, EndTime: baseTime}))
	}

	_, err := store.CommitGroup(ctx, []entities.Update{
		{Ref: entities.EventRef("e1"), From: string(entities.EventSoon), Delta: entities.Delta{Status: string(entities.EventActive)}},
		{Ref: entities.EventRef("e2"), From: string(entities.EventSoon), Delta: entities.Delta{Status: "cancelled"}},
	})
	require.Error(t, err, "the status check constraint rejects e2")

	for _, id := range []string{"e1", "e2"} {
		e, err := store.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entities.EventSoon, e.Status, id)
	}

	_, err = store.CommitGroup(ctx, []entities.Update{{Ref: entities.RecordRef{Collection: "users", ID: "x"}}})
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
}

func TestStore_GetMissingRecords(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetEvent(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = store.GetParticipantEvent(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestStore_RunsLifecycleEndToEnd(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEvent(ctx, &entities.Event{
		ID: "e1", Status: entities.EventSoon, StartTime: baseTime.Add(-time.Second), EndTime: baseTime.Add(time.Minute),
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateParticipantEvent(ctx, &entities.ParticipantEvent{
			UserID: fmt.Sprintf("u%d", i), EventID: "e1", Status: entities.ParticipantAwaiting,
		}))
	}
	jobs, err := application.NewJobSet(store, application.Options{ChunkSize: 2, Clock: clock.Fixed(baseTime)})
	require.NoError(t, err)

	steps := []struct {
		now  time.Time
		want entities.ParticipantStatus
	}{
		{baseTime, entities.ParticipantActive},
		{baseTime.Add(2 * time.Minute), entities.ParticipantEnded},
		{baseTime.Add(4 * time.Minute), entities.ParticipantOverdue},
		{baseTime.Add(6 * time.Minute), entities.ParticipantAbsent},
	}
	for _, step := range steps {
		_, err := jobs.Activate.Reconcile(ctx, step.now)
		require.NoError(t, err)
		_, err = jobs.End.Reconcile(ctx, step.now)
		require.NoError(t, err)
		_, err = jobs.MarkOverdue.Reconcile(ctx, step.now)
		require.NoError(t, err)
		_, err = jobs.MarkAbsent.Reconcile(ctx, step.now)
		require.NoError(t, err)

		rows, err := store.FindByEventIDAndStatus(ctx, "e1", step.want)
		require.NoError(t, err)
		assert.Len(t, rows, 5, "all participants %s at %s", step.want, step.now)
	}

	p, err := store.GetParticipantEvent(ctx, "u3", "e1")
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(2*time.Minute), p.EndedTime)
	assert.Equal(t, baseTime.Add(4*time.Minute), p.OverdueTime)
}
