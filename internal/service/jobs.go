package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"library-service/internal/lending"
	"library-service/internal/repository"
)

const overdueSummaryJob = "overdue-summary"

type OverdueReport struct {
	Overdue  int // overdue borrowings found
	Notified int // notifications sent by this run
}

// JobService holds the periodic jobs. Both take the current time so they can
// be driven by the scheduler or called directly.
type JobService interface {
	ExpirePendingPayments(ctx context.Context, now time.Time) (int64, error)
	FlagOverdueBorrowings(ctx context.Context, now time.Time) (*OverdueReport, error)
}

type jobServiceImpl struct {
	paymentService PaymentService
	borrowingRepo  repository.BorrowingRepository
	jobRunRepo     repository.JobRunRepository
	notifications  *Notifications
	location       *time.Location
	logger         *slog.Logger
}

func NewJobService(
	paymentService PaymentService,
	borrowingRepo repository.BorrowingRepository,
	jobRunRepo repository.JobRunRepository,
	notifications *Notifications,
	location *time.Location,
	logger *slog.Logger,
) JobService {
	return &jobServiceImpl{
		paymentService: paymentService,
		borrowingRepo:  borrowingRepo,
		jobRunRepo:     jobRunRepo,
		notifications:  notifications,
		location:       location,
		logger:         logger,
	}
}

func (s *jobServiceImpl) ExpirePendingPayments(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.paymentService.ExpireStale(ctx, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired pending payments", "count", expired)
	}
	return expired, nil
}

// FlagOverdueBorrowings notifies staff once per day about every overdue
// borrowing, or once per day that nothing is overdue. Each notice is claimed
// before its message is sent and the claim is released when sending fails,
// so a rerun on the same day only retries what was not delivered.
func (s *jobServiceImpl) FlagOverdueBorrowings(ctx context.Context, now time.Time) (*OverdueReport, error) {
	today := lending.Day(now, s.location)

	overdue, err := s.borrowingRepo.FindOverdue(ctx, today)
	if err != nil {
		return nil, err
	}

	report := &OverdueReport{Overdue: len(overdue)}
	if len(overdue) == 0 {
		sent, err := s.sendNoOverdueSummary(ctx, today, now)
		if sent {
			report.Notified++
		}
		return report, err
	}

	var errs []error
	for _, b := range overdue {
		claimed, err := s.borrowingRepo.ClaimOverdueNotice(ctx, b.ID, today)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !claimed {
			continue
		}

		if err := s.notifications.Send(ctx, overdueMessage(b, today)); err != nil {
			errs = append(errs, fmt.Errorf("borrowing %d: %w", b.ID, err))
			if err := s.borrowingRepo.ReleaseOverdueNotice(ctx, b.ID, today, b.OverdueNotifiedOn); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		report.Notified++
	}

	s.logger.InfoContext(ctx, "overdue sweep finished",
		"day", today.Format(time.DateOnly), "overdue", report.Overdue, "notified", report.Notified)

	return report, errors.Join(errs...)
}

func (s *jobServiceImpl) sendNoOverdueSummary(ctx context.Context, today, now time.Time) (bool, error) {
	claimed, err := s.jobRunRepo.Claim(ctx, overdueSummaryJob, today, now.UTC())
	if err != nil {
		return false, err
	}
	if !claimed {
		s.logger.DebugContext(ctx, "overdue summary already sent", "day", today.Format(time.DateOnly))
		return false, nil
	}

	if err := s.notifications.Send(ctx, noOverdueMessage); err != nil {
		if relErr := s.jobRunRepo.Release(ctx, overdueSummaryJob, today); relErr != nil {
			return false, errors.Join(err, relErr)
		}
		return false, err
	}
	return true, nil
}
