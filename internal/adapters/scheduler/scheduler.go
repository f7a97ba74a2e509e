// Package scheduler drives the lifecycle jobs on fixed cadences.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reconciler/internal/ports/input"
)

// Entry runs Job every Every.
type Entry struct {
	Job   input.LifecycleJob
	Every time.Duration
}

// Scheduler runs each entry on its own ticker. Runs of different jobs may
// overlap; runs of one job never do since its ticker drops ticks while a run
// is in progress.
type Scheduler struct {
	entries []Entry
	logger  *slog.Logger
}

// New validates entries and returns a Scheduler.
func New(logger *slog.Logger, entries ...Entry) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range entries {
		if e.Job == nil {
			return nil, fmt.Errorf("scheduler: job is required")
		}
		if e.Every <= 0 {
			return nil, fmt.Errorf("scheduler: %s: interval must be positive, got %s", e.Job.Name(), e.Every)
		}
	}
	return &Scheduler{entries: entries, logger: logger}, nil
}

// Run starts every job immediately, then on its cadence, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	s.logger.Info("planificateur démarré", "jobs", len(s.entries))
	wg.Wait()
	s.logger.Info("planificateur arrêté")
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	ticker := time.NewTicker(e.Every)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		e.Job.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs jobs once each, in order, and stops early when ctx is done.
func RunOnce(ctx context.Context, jobs ...input.LifecycleJob) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		job.Run(ctx)
	}
}
