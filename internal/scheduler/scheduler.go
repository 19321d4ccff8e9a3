// Package scheduler fires the ingestion trigger on a cron schedule. It owns
// the clock; the pipeline it drives stays unaware of who called it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/jobhunt/internal/logging"
)

// Trigger runs one ingestion.
type Trigger func(ctx context.Context) error

// Scheduler wraps robfig/cron. Runs never overlap: a tick that arrives
// while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	trigger  Trigger
	logger   *slog.Logger

	running sync.Mutex
}

// New creates a Scheduler for a standard five-field cron spec (or a
// descriptor such as "@daily") evaluated in loc.
func New(spec string, loc *time.Location, trigger Trigger, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	cl := logging.NewCronLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		spec:     spec,
		loc:      loc,
		trigger:  trigger,
		logger:   logger,
	}, nil
}

// Start registers the job and starts the cron loop. With runNow it also
// fires once immediately, in the background.
func (s *Scheduler) Start(ctx context.Context, runNow bool) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec, "tz", s.loc.String(), "next", s.Next(time.Now()))

	if runNow {
		go s.fire(ctx)
	}
	return nil
}

// Stop stops the cron loop. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("cron stopped")
	return ctx
}

// Next returns the first activation strictly after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("previous ingestion still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Info("scheduled ingestion started")
	if err := s.trigger(ctx); err != nil {
		s.logger.Error("scheduled ingestion failed", "err", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled ingestion complete", "duration", time.Since(start))
}
