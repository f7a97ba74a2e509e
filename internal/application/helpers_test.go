package application

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reconciler/internal/domain/entities"
	"reconciler/internal/testkit/memstore"
	"reconciler/pkg/clock"
)

var baseTime = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecorder struct {
	mu           sync.Mutex
	runs         []string
	transitioned map[string]int
	chunksOK     int
	chunksFailed int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{transitioned: make(map[string]int)}
}

func (r *fakeRecorder) JobRun(job, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, job+":"+outcome)
}

func (r *fakeRecorder) Transitioned(job string, collection entities.Collection, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitioned[job+"/"+string(collection)] += n
}

func (r *fakeRecorder) ChunkCommit(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.chunksOK++
	} else {
		r.chunksFailed++
	}
}

type jobFixture struct {
	store    *memstore.Store
	jobs     *JobSet
	recorder *fakeRecorder
	logs     *bytes.Buffer
}

func newJobFixture(t *testing.T, opts Options) *jobFixture {
	t.Helper()
	store := memstore.New()
	rec := newFakeRecorder()
	logs := &bytes.Buffer{}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if opts.Clock == nil {
		opts.Clock = clock.Fixed(baseTime)
	}
	opts.Recorder = rec
	jobs, err := NewJobSet(store, opts)
	require.NoError(t, err)
	return &jobFixture{store: store, jobs: jobs, recorder: rec, logs: logs}
}

func soonEvent(id string, start time.Time) entities.Event {
	return entities.Event{ID: id, Status: entities.EventSoon, StartTime: start, EndTime: start.Add(time.Hour)}
}

func participant(userID, eventID string, status entities.ParticipantStatus) entities.ParticipantEvent {
	return entities.ParticipantEvent{UserID: userID, EventID: eventID, Status: status}
}
