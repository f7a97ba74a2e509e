package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/input"
	"reconciler/internal/ports/output"
	"reconciler/pkg/clock"
)

// Job names, also used as log attributes, metric labels and scheduler keys.
const (
	JobActivate    = "activate"
	JobEnd         = "end"
	JobMarkOverdue = "mark_overdue"
	JobMarkAbsent  = "mark_absent"
)

// JobNames lists every job in the order a one-shot pass runs them.
var JobNames = []string{JobActivate, JobEnd, JobMarkOverdue, JobMarkAbsent}

// DefaultRunTimeout bounds a single job run.
const DefaultRunTimeout = 2 * time.Minute

var tracer = otel.Tracer("reconciler/internal/application")

// Report summarises one job run.
type Report struct {
	Matched      int // records that satisfied the predicate
	Transitioned int // records rewritten by the job itself
	Propagated   int // participant rows rewritten by propagation
}

type reconcileFunc func(ctx context.Context, now time.Time) (Report, error)

// runner is the job boundary: it captures the run's instant, calls the job's
// reconcile step and turns its error into a log line. It never returns the
// error so that a retrying scheduler does not replay the run.
type runner struct {
	name       string
	collection entities.Collection
	clock      clock.Clock
	logger     *slog.Logger
	recorder   Recorder
	timeout    time.Duration
}

func (r runner) Name() string {
	return r.name
}

func (r runner) run(ctx context.Context, reconcile reconcileFunc) {
	start := time.Now()
	logger := r.logger.With("job", r.name, "run_id", uuid.NewString())

	// A started run finishes even when ctx is cancelled: events committed
	// before the cancellation must still reach their participants.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "reconciler.job."+r.name)
	defer span.End()

	report, err := r.reconcileSafely(ctx, reconcile)
	elapsed := time.Since(start)
	r.recorder.Transitioned(r.name, r.collection, report.Transitioned)
	if report.Propagated > 0 {
		r.recorder.Transitioned(r.name, entities.CollectionParticipantEvents, report.Propagated)
	}
	span.SetAttributes(
		attribute.Int("reconciler.matched", report.Matched),
		attribute.Int("reconciler.transitioned", report.Transitioned),
		attribute.Int("reconciler.propagated", report.Propagated),
	)

	attrs := []any{
		"matched", report.Matched,
		"transitioned", report.Transitioned,
		"propagated", report.Propagated,
		"duration", elapsed,
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Code(err))
		r.recorder.JobRun(r.name, OutcomeFailure, elapsed)
		logger.Error("échec de la tâche", append(attrs, "error_code", domain.Code(err), "error", err)...)
	case report.Matched == 0:
		r.recorder.JobRun(r.name, OutcomeNoop, elapsed)
		logger.Debug("rien à traiter", attrs...)
	default:
		r.recorder.JobRun(r.name, OutcomeSuccess, elapsed)
		logger.Info("tâche terminée", attrs...)
	}
}

// reconcileSafely converts a panic in reconcile into an error.
func (r runner) reconcileSafely(ctx context.Context, reconcile reconcileFunc) (report Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: panic: %v", r.name, p)
		}
	}()
	return reconcile(ctx, r.clock())
}

// Options configures the job set.
type Options struct {
	ChunkSize     int
	OverdueWindow time.Duration
	AbsentWindow  time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
	Recorder      Recorder
	RunTimeout    time.Duration // upper bound of one run, independent of the caller's context
}

func (o Options) normalized() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.OverdueWindow <= 0 {
		o.OverdueWindow = DefaultOverdueWindow
	}
	if o.AbsentWindow <= 0 {
		o.AbsentWindow = DefaultAbsentWindow
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	o.Clock = clock.OrSystem(o.Clock)
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Recorder == nil {
		o.Recorder = NopRecorder{}
	}
	return o
}

// JobSet holds the four lifecycle jobs wired to one store.
type JobSet struct {
	Activate    *ActivateJob
	End         *EndJob
	MarkOverdue *MarkOverdueJob
	MarkAbsent  *MarkAbsentJob
}

// NewJobSet wires every lifecycle job, the shared ChunkedWriter and the
// PropagationEngine to store.
func NewJobSet(store output.Store, opts Options) (*JobSet, error) {
	if store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	opts = opts.normalized()
	writer, err := NewChunkedWriter(store, opts.ChunkSize, opts.Recorder)
	if err != nil {
		return nil, err
	}
	propagator := NewPropagationEngine(store, writer, opts.Logger.With("component", "propagation"))

	newRunner := func(name string, collection entities.Collection) runner {
		return runner{
			name:       name,
			collection: collection,
			clock:      opts.Clock,
			logger:     opts.Logger,
			recorder:   opts.Recorder,
			timeout:    opts.RunTimeout,
		}
	}
	return &JobSet{
		Activate: &ActivateJob{
			runner:     newRunner(JobActivate, entities.CollectionEvents),
			events:     store,
			writer:     writer,
			propagator: propagator,
		},
		End: &EndJob{
			runner:     newRunner(JobEnd, entities.CollectionEvents),
			events:     store,
			writer:     writer,
			propagator: propagator,
		},
		MarkOverdue: &MarkOverdueJob{
			runner:       newRunner(JobMarkOverdue, entities.CollectionParticipantEvents),
			participants: store,
			writer:       writer,
			window:       opts.OverdueWindow,
		},
		MarkAbsent: &MarkAbsentJob{
			runner:       newRunner(JobMarkAbsent, entities.CollectionParticipantEvents),
			participants: store,
			writer:       writer,
			window:       opts.AbsentWindow,
		},
	}, nil
}

// All returns the jobs in JobNames order.
func (s *JobSet) All() []input.LifecycleJob {
	return []input.LifecycleJob{s.Activate, s.End, s.MarkOverdue, s.MarkAbsent}
}

// Lookup returns the job with the given name.
func (s *JobSet) Lookup(name string) (input.LifecycleJob, error) {
	for _, job := range s.All() {
		if job.Name() == name {
			return job, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJob, name)
}
