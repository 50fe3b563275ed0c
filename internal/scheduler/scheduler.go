// Package scheduler runs the periodic lending jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"library-service/internal/config"
	"library-service/internal/service"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	jobs   service.JobService
	now    func() time.Time
	logger *slog.Logger
}

// New registers the payment expiry and overdue sweep jobs. Specs use the
// standard five-field cron syntax, evaluated in loc.
func New(jobs service.JobService, cfg config.Scheduler, loc *time.Location, now func() time.Time, logger *slog.Logger) (*Scheduler, error) {
	if now == nil {
		now = time.Now
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobs:   jobs,
		now:    now,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(cfg.ExpirySpec, s.ExpirePendingPayments); err != nil {
		return nil, fmt.Errorf("schedule payment expiry %q: %w", cfg.ExpirySpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.OverdueSpec, s.FlagOverdueBorrowings); err != nil {
		return nil, fmt.Errorf("schedule overdue sweep %q: %w", cfg.OverdueSpec, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpirePendingPayments is one run of the expiry job. Failures are logged; the
// next run retries.
func (s *Scheduler) ExpirePendingPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.jobs.ExpirePendingPayments(ctx, s.now()); err != nil {
		s.logger.Error("payment expiry job failed", "err", err)
	}
}

// FlagOverdueBorrowings is one run of the overdue sweep.
func (s *Scheduler) FlagOverdueBorrowings() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.jobs.FlagOverdueBorrowings(ctx, s.now()); err != nil {
		s.logger.Error("overdue sweep failed", "err", err)
	}
}
