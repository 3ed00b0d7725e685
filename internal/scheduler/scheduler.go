// Package scheduler runs periodic maintenance jobs for the tournament.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Reconciler repairs cached totals. *tournament.Engine satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler owns the background jobs. A zero interval leaves it idle.
type Scheduler struct {
	sched    gocron.Scheduler
	logger   *slog.Logger
	interval time.Duration
}

// New registers the reconcile job at interval. Jobs start with Start.
func New(r Reconciler, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{logger: logger, interval: interval}
	if interval <= 0 {
		return s, nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			fixed, err := r.Reconcile(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Scheduled reconcile failed", slog.Any("error", err))
				return
			}
			if fixed > 0 {
				logger.InfoContext(ctx, "Scheduled reconcile fixed totals", slog.Int("fixed", fixed))
			}
		}),
		gocron.WithName("reconcile-totals"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to register reconcile job: %w", err)
	}
	s.sched = sched
	return s, nil
}

// Enabled reports whether any job is registered.
func (s *Scheduler) Enabled() bool { return s.sched != nil }

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	if s.sched == nil {
		s.logger.Info("Reconcile job disabled")
		return
	}
	s.logger.Info("Reconcile job scheduled", slog.Duration("interval", s.interval))
	s.sched.Start()
}

// Shutdown stops the jobs and waits for running ones to finish.
func (s *Scheduler) Shutdown() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
