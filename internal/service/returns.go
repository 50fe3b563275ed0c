package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/lending"
	"library-service/internal/model"
	"library-service/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReturnResult struct {
	Outcome   lending.ReturnOutcome
	Borrowing *model.Borrowing
	Fine      *model.Payment // set when Outcome is ReturnPendingFine
}

type ReturnService interface {
	Return(ctx context.Context, actor model.Actor, borrowingID uint) (*ReturnResult, error)
}

type returnServiceImpl struct {
	db             *gorm.DB
	paymentService PaymentService
	paymentRepo    repository.PaymentRepository
	bookRepo       repository.BookRepository
	borrowingRepo  repository.BorrowingRepository
	notifications  *Notifications
	calendar       Calendar
	fineMultiplier decimal.Decimal
	logger         *slog.Logger
}

func NewReturnService(
	db *gorm.DB,
	paymentService PaymentService,
	paymentRepo repository.PaymentRepository,
	bookRepo repository.BookRepository,
	borrowingRepo repository.BorrowingRepository,
	notifications *Notifications,
	calendar Calendar,
	fineMultiplier decimal.Decimal,
	logger *slog.Logger,
) ReturnService {
	return &returnServiceImpl{
		db:             db,
		paymentService: paymentService,
		paymentRepo:    paymentRepo,
		bookRepo:       bookRepo,
		borrowingRepo:  borrowingRepo,
		notifications:  notifications,
		calendar:       calendar,
		fineMultiplier: fineMultiplier,
		logger:         logger,
	}
}

// Return brings a book back. On time, the borrowing closes and the copy is
// restocked immediately. Late, a FINE payment is opened instead and the
// borrowing stays active until the fine is confirmed.
func (s *returnServiceImpl) Return(ctx context.Context, actor model.Actor, borrowingID uint) (*ReturnResult, error) {
	borrowing, err := s.borrowingRepo.FindByID(ctx, nil, borrowingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(borrowing.UserID) {
		return nil, apperr.New(apperr.Forbidden, "borrowing %d belongs to another user", borrowingID)
	}
	if !borrowing.IsActive() {
		return nil, apperr.New(apperr.Conflict, "borrowing %d already returned", borrowingID)
	}
	if !lending.InitialPaymentPaid(borrowing) {
		return nil, apperr.New(apperr.Conflict, "borrowing %d has not been paid", borrowingID)
	}

	today := s.calendar.Today()
	outcome, err := lending.DecideReturn(borrowing, today)
	if err != nil {
		return nil, err
	}

	if outcome == lending.ReturnPendingFine {
		fine, err := s.openFine(ctx, borrowing, today)
		if err != nil {
			return nil, err
		}
		return &ReturnResult{Outcome: outcome, Borrowing: borrowing, Fine: fine}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.borrowingRepo.MarkReturned(ctx, tx, borrowing.ID, today); err != nil {
			return err
		}
		return s.bookRepo.IncrementInventory(ctx, tx, borrowing.BookID)
	})
	if err != nil {
		return nil, err
	}
	borrowing.ActualReturnDate = &today

	s.logger.InfoContext(ctx, "book returned", "borrowing_id", borrowing.ID, "book_id", borrowing.BookID)
	s.notifications.Announce(ctx, bookReturnedMessage(borrowing, today))

	return &ReturnResult{Outcome: outcome, Borrowing: borrowing}, nil
}

// openFine returns the borrowing's pending fine, creating it when none exists.
func (s *returnServiceImpl) openFine(ctx context.Context, borrowing *model.Borrowing, today time.Time) (*model.Payment, error) {
	pending, err := s.paymentRepo.FindPending(ctx, nil, borrowing.ID, model.PaymentTypeFine)
	if err == nil {
		return pending, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}

	amount := lending.FineAmount(borrowing.Book.DailyFee, borrowing.ExpectedReturnDate, today, s.fineMultiplier)
	session, err := s.paymentService.OpenSession(ctx, SessionRequest{
		AmountCents: amount,
		Description: fmt.Sprintf("Overdue fine for %s (%d days late)",
			borrowing.Book.Title, lending.DaysBetween(borrowing.ExpectedReturnDate, today)),
		ReferenceID: fmt.Sprintf("borrowing-%d", borrowing.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("open fine checkout: %w", err)
	}

	returnDate := today
	fine := &model.Payment{
		BorrowingID:    borrowing.ID,
		Type:           model.PaymentTypeFine,
		AmountCents:    amount,
		SessionID:      session.ID,
		SessionURL:     session.URL,
		FineReturnDate: &returnDate,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentService.Create(ctx, tx, fine)
	})
	if apperr.Is(err, apperr.Conflict) {
		// a concurrent return opened the fine first
		return s.paymentRepo.FindPending(ctx, nil, borrowing.ID, model.PaymentTypeFine)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "fine opened",
		"borrowing_id", borrowing.ID, "payment_id", fine.ID, "amount_cents", amount)

	return fine, nil
}
