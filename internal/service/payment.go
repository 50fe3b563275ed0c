package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/client"
	"library-service/internal/model"
	"library-service/internal/repository"

	"gorm.io/gorm"
)

// ConfirmEffect applies the domain consequence of a payment becoming PAID.
// It runs in the same transaction as the status change; an error rolls both back.
type ConfirmEffect func(ctx context.Context, tx *gorm.DB, payment *model.Payment) error

type SessionRequest struct {
	AmountCents int64
	Description string
	ReferenceID string
}

// PaymentQuery holds the optional ?status= and ?type= list filters, raw as received.
type PaymentQuery struct {
	Status string
	Type   string
}

type PaymentService interface {
	OpenSession(ctx context.Context, req SessionRequest) (*client.CheckoutSession, error)
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	Confirm(ctx context.Context, sessionID string, apply ConfirmEffect) (*model.Payment, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, actor model.Actor, query PaymentQuery) ([]*model.Payment, error)
	Get(ctx context.Context, actor model.Actor, paymentID uint) (*model.Payment, error)
	GetBySession(ctx context.Context, sessionID string) (*model.Payment, error)
	PendingForUser(ctx context.Context, actor model.Actor) ([]*model.Payment, error)
}

type paymentServiceImpl struct {
	db             *gorm.DB
	provider       client.PaymentProvider
	paymentRepo    repository.PaymentRepository
	calendar       Calendar
	serviceBaseUrl string
	currency       string
	gracePeriod    time.Duration
	logger         *slog.Logger
}

func NewPaymentService(
	db *gorm.DB,
	provider client.PaymentProvider,
	paymentRepo repository.PaymentRepository,
	calendar Calendar,
	serviceBaseUrl string,
	currency string,
	gracePeriod time.Duration,
	logger *slog.Logger,
) PaymentService {
	return &paymentServiceImpl{
		db:             db,
		provider:       provider,
		paymentRepo:    paymentRepo,
		calendar:       calendar,
		serviceBaseUrl: serviceBaseUrl,
		currency:       currency,
		gracePeriod:    gracePeriod,
		logger:         logger,
	}
}

// OpenSession creates a checkout session at the provider. It is called before
// any transaction is opened so no lock is held across the network call.
func (s *paymentServiceImpl) OpenSession(ctx context.Context, req SessionRequest) (*client.CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return nil, apperr.New(apperr.Validation, "payment amount must be positive")
	}

	session, err := s.provider.CreateSession(ctx, &client.CreateSessionRequest{
		AmountCents: req.AmountCents,
		Currency:    s.currency,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		SuccessURL:  fmt.Sprintf("%s/api/payments/success", s.serviceBaseUrl),
		CancelURL:   fmt.Sprintf("%s/api/payments/cancel", s.serviceBaseUrl),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalService, err, "create checkout session")
	}

	return session, nil
}

// Create persists a new PENDING payment for an opened session.
func (s *paymentServiceImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if payment.SessionID == "" {
		return apperr.New(apperr.Validation, "payment has no checkout session")
	}
	payment.Status = model.PaymentPending
	payment.CreatedAt = s.calendar.Instant()

	return s.paymentRepo.Create(ctx, tx, payment)
}

// Confirm asks the provider whether the session was paid and, if so, moves
// the payment to PAID and applies its effect atomically. A payment that is
// no longer PENDING yields AlreadyProcessed and nothing changes.
func (s *paymentServiceImpl) Confirm(ctx context.Context, sessionID string, apply ConfirmEffect) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransition(model.PaymentPaid) {
		return nil, apperr.New(apperr.AlreadyProcessed, "payment %d already %s", payment.ID, payment.Status)
	}

	status, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalService, err, "retrieve checkout session")
	}
	if !status.Paid {
		return nil, apperr.New(apperr.PaymentNotCompleted, "payment %d not completed (provider status %s)", payment.ID, status.Status)
	}

	paidAt := s.calendar.Instant()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.paymentRepo.MarkPaid(ctx, tx, payment.ID, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.AlreadyProcessed, "payment %d already processed", payment.ID)
		}
		return apply(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	payment.Status = model.PaymentPaid
	payment.PendingKey = nil
	payment.PaidAt = &paidAt

	s.logger.InfoContext(ctx, "payment confirmed",
		"payment_id", payment.ID, "borrowing_id", payment.BorrowingID, "type", payment.Type)

	return payment, nil
}

// ExpireStale moves PENDING payments older than the grace period to EXPIRED.
func (s *paymentServiceImpl) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.gracePeriod).UTC()
	return s.paymentRepo.ExpireStale(ctx, cutoff, now.UTC())
}

// List returns the caller's payments, or everyone's for staff. Unknown
// status or type filters are a Validation error.
func (s *paymentServiceImpl) List(ctx context.Context, actor model.Actor, query PaymentQuery) ([]*model.Payment, error) {
	var filter repository.PaymentFilter
	if !actor.IsStaff {
		filter.UserID = actor.UserID
	}
	if query.Status != "" {
		status, err := model.ParsePaymentStatus(query.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	if query.Type != "" {
		paymentType, err := model.ParsePaymentType(query.Type)
		if err != nil {
			return nil, err
		}
		filter.Type = paymentType
	}
	return s.paymentRepo.List(ctx, filter)
}

func (s *paymentServiceImpl) Get(ctx context.Context, actor model.Actor, paymentID uint) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(payment.Borrowing.UserID) {
		return nil, apperr.New(apperr.Forbidden, "payment %d belongs to another user", paymentID)
	}
	return payment, nil
}

func (s *paymentServiceImpl) GetBySession(ctx context.Context, sessionID string) (*model.Payment, error) {
	return s.paymentRepo.FindBySessionID(ctx, sessionID)
}

// PendingForUser lists the caller's unpaid sessions so a cancelled checkout can be resumed.
func (s *paymentServiceImpl) PendingForUser(ctx context.Context, actor model.Actor) ([]*model.Payment, error) {
	return s.paymentRepo.ListPendingForUser(ctx, actor.UserID)
}
