package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/client"
	"library-service/internal/lending"
	"library-service/internal/model"
	"library-service/internal/repository"

	"gorm.io/gorm"
)

type BorrowResult struct {
	Borrowing *model.Borrowing
	Payment   *model.Payment
}

type CheckoutService interface {
	InitiateBorrow(ctx context.Context, actor model.Actor, bookID uint, expectedReturn time.Time) (*BorrowResult, error)
	ConfirmPayment(ctx context.Context, sessionID string) (*model.Payment, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type checkoutServiceImpl struct {
	db               *gorm.DB
	provider         client.PaymentProvider
	paymentService   PaymentService
	bookRepo         repository.BookRepository
	borrowingRepo    repository.BorrowingRepository
	webhookEventRepo repository.WebhookEventRepository
	notifications    *Notifications
	calendar         Calendar
	logger           *slog.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	provider client.PaymentProvider,
	paymentService PaymentService,
	bookRepo repository.BookRepository,
	borrowingRepo repository.BorrowingRepository,
	webhookEventRepo repository.WebhookEventRepository,
	notifications *Notifications,
	calendar Calendar,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		db:               db,
		provider:         provider,
		paymentService:   paymentService,
		bookRepo:         bookRepo,
		borrowingRepo:    borrowingRepo,
		webhookEventRepo: webhookEventRepo,
		notifications:    notifications,
		calendar:         calendar,
		logger:           logger,
	}
}

// InitiateBorrow validates the request, opens a checkout session for the
// rental fee and records the borrowing with its PENDING payment. Inventory is
// only taken when the payment is confirmed.
func (s *checkoutServiceImpl) InitiateBorrow(ctx context.Context, actor model.Actor, bookID uint, expectedReturn time.Time) (*BorrowResult, error) {
	book, err := s.bookRepo.FindByID(ctx, nil, bookID)
	if err != nil {
		return nil, err
	}

	today := s.calendar.Today()
	expectedReturn = lending.Day(expectedReturn, time.UTC)
	if err := lending.ValidateNewBorrowing(book, today, expectedReturn); err != nil {
		return nil, err
	}

	amount := lending.RentalAmount(book.DailyFee, today, expectedReturn)
	session, err := s.paymentService.OpenSession(ctx, SessionRequest{
		AmountCents: amount,
		Description: fmt.Sprintf("Rental of %s until %s", book.Title, expectedReturn.Format(time.DateOnly)),
		ReferenceID: fmt.Sprintf("book-%d", book.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("open rental checkout: %w", err)
	}

	borrowing := &model.Borrowing{
		BookID:             book.ID,
		UserID:             actor.UserID,
		UserEmail:          actor.Email,
		BorrowDate:         today,
		ExpectedReturnDate: expectedReturn,
		CreatedAt:          s.calendar.Instant(),
	}
	payment := &model.Payment{
		Type:        model.PaymentTypePayment,
		AmountCents: amount,
		SessionID:   session.ID,
		SessionURL:  session.URL,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.borrowingRepo.Create(ctx, tx, borrowing); err != nil {
			return fmt.Errorf("store borrowing: %w", err)
		}
		payment.BorrowingID = borrowing.ID
		if err := s.paymentService.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	borrowing.Book = book
	borrowing.Payments = []*model.Payment{payment}

	s.logger.InfoContext(ctx, "borrowing created",
		"borrowing_id", borrowing.ID, "book_id", book.ID, "user_id", actor.UserID, "amount_cents", amount)
	s.notifications.Announce(ctx, borrowingCreatedMessage(borrowing, payment))

	return &BorrowResult{Borrowing: borrowing, Payment: payment}, nil
}

// ConfirmPayment handles the provider's success callback for any payment type.
func (s *checkoutServiceImpl) ConfirmPayment(ctx context.Context, sessionID string) (*model.Payment, error) {
	if sessionID == "" {
		return nil, apperr.New(apperr.Validation, "missing session id")
	}

	payment, err := s.paymentService.Confirm(ctx, sessionID, s.applyPaid)
	if apperr.Is(err, apperr.Inventory) {
		s.reportRefundRequired(ctx, sessionID, err)
	}
	if err != nil {
		return nil, err
	}

	switch payment.Type {
	case model.PaymentTypePayment:
		s.notifications.Announce(ctx, paymentSuccessMessage(payment.Borrowing, payment))
	case model.PaymentTypeFine:
		s.notifications.Announce(ctx, finePaidMessage(payment.Borrowing, payment))
	}

	return payment, nil
}

// reportRefundRequired alerts staff that a captured rental could not take a
// copy out of stock. The payment stays PENDING and expires, so the money must
// be refunded by hand.
func (s *checkoutServiceImpl) reportRefundRequired(ctx context.Context, sessionID string, cause error) {
	payment, err := s.paymentService.GetBySession(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment captured but book out of stock, refund required",
			"session_id", sessionID, "err", cause)
		return
	}

	s.logger.ErrorContext(ctx, "payment captured but book out of stock, refund required",
		"session_id", sessionID, "payment_id", payment.ID, "borrowing_id", payment.BorrowingID,
		"amount_cents", payment.AmountCents, "err", cause)
	s.notifications.Announce(ctx, refundRequiredMessage(payment.Borrowing, payment))
}

// applyPaid is the effect of a confirmed payment. The rental fee takes a
// copy out of stock; a fine closes the borrowing and puts the copy back.
func (s *checkoutServiceImpl) applyPaid(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	borrowing := payment.Borrowing

	switch payment.Type {
	case model.PaymentTypePayment:
		return s.bookRepo.DecrementInventory(ctx, tx, borrowing.BookID)

	case model.PaymentTypeFine:
		if payment.FineReturnDate == nil {
			return fmt.Errorf("fine payment %d has no return date", payment.ID)
		}
		if err := s.borrowingRepo.MarkReturned(ctx, tx, borrowing.ID, *payment.FineReturnDate); err != nil {
			return err
		}
		returned := *payment.FineReturnDate
		borrowing.ActualReturnDate = &returned
		return s.bookRepo.IncrementInventory(ctx, tx, borrowing.BookID)

	default:
		return fmt.Errorf("payment %d has unknown type %q", payment.ID, payment.Type)
	}
}

// HandleWebhook processes a provider webhook delivery. Events are
// de-duplicated on their id; confirmation itself is idempotent as well.
func (s *checkoutServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	err := s.provider.VerifyWebhookSignature(ctx, headers, body)
	if err != nil {
		return apperr.Wrap(apperr.Validation, err, "verify webhook signature")
	}

	var eventPayload model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &eventPayload); err != nil {
		return apperr.Wrap(apperr.Validation, err, "decode webhook payload")
	}

	seen, err := s.webhookEventRepo.Exists(ctx, eventPayload.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		return nil
	}

	switch eventPayload.EventType {
	case model.PaypalEventOrderApproved, model.PaypalEventOrderCompleted, model.PaypalEventCaptureComplete:
		orderID := eventPayload.Resource.OrderID(eventPayload.EventType)
		if orderID == "" {
			return apperr.New(apperr.Validation, "could not find order id in webhook payload")
		}
		_, err := s.ConfirmPayment(ctx, orderID)
		switch apperr.Code(err) {
		case "", apperr.AlreadyProcessed:
		case apperr.NotFound:
			s.logger.WarnContext(ctx, "webhook for unknown order", "order_id", orderID, "event_id", eventPayload.ID)
		default:
			return err
		}
	default:
		s.logger.DebugContext(ctx, "ignored webhook event", "event_type", eventPayload.EventType)
	}

	err = s.webhookEventRepo.MarkProcessed(ctx, eventPayload.ID, eventPayload.EventType, s.calendar.Instant())
	if err != nil && !apperr.Is(err, apperr.AlreadyProcessed) {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}
