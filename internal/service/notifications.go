package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"library-service/internal/client"
	"library-service/internal/lending"
	"library-service/internal/model"
)

// Calendar turns the wall clock into library-local calendar days.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

func NewCalendar(now func() time.Time, loc *time.Location) Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Now: now, Location: loc}
}

func (c Calendar) Today() time.Time {
	return lending.Day(c.Now(), c.Location)
}

// Instant is the current time in UTC, used for stored timestamps.
func (c Calendar) Instant() time.Time {
	return c.Now().UTC()
}

// Notifications sends staff messages to the configured admin chat.
type Notifications struct {
	notifier client.Notifier
	chatID   string
	logger   *slog.Logger
}

func NewNotifications(notifier client.Notifier, chatID string, logger *slog.Logger) *Notifications {
	return &Notifications{notifier: notifier, chatID: chatID, logger: logger}
}

func (n *Notifications) Send(ctx context.Context, text string) error {
	if err := n.notifier.Send(ctx, n.chatID, text); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Announce sends text and only logs a failure. Used after a state change has
// already been committed.
func (n *Notifications) Announce(ctx context.Context, text string) {
	if err := n.Send(ctx, text); err != nil {
		n.logger.WarnContext(ctx, "notification not delivered", "err", err)
	}
}

func borrowingCreatedMessage(b *model.Borrowing, p *model.Payment) string {
	return fmt.Sprintf(
		"New borrowing #%d\nUser: %s\nBook: %s\nBorrowed: %s\nExpected return: %s\nAmount due: %s\nStatus: waiting for payment",
		b.ID, userLabel(b), b.Book, b.BorrowDate.Format(time.DateOnly),
		b.ExpectedReturnDate.Format(time.DateOnly), lending.FormatCents(p.AmountCents),
	)
}

func paymentSuccessMessage(b *model.Borrowing, p *model.Payment) string {
	return fmt.Sprintf(
		"Payment successful for borrowing #%d\nUser: %s\nBook: %s\nAmount: %s",
		b.ID, userLabel(b), b.Book, lending.FormatCents(p.AmountCents),
	)
}

func finePaidMessage(b *model.Borrowing, p *model.Payment) string {
	return fmt.Sprintf(
		"Fine paid, book returned for borrowing #%d\nUser: %s\nBook: %s\nReturned: %s\nFine: %s",
		b.ID, userLabel(b), b.Book, p.FineReturnDate.Format(time.DateOnly), lending.FormatCents(p.AmountCents),
	)
}

func refundRequiredMessage(b *model.Borrowing, p *model.Payment) string {
	return fmt.Sprintf(
		"Refund required for borrowing #%d\nUser: %s\nBook: %s\nAmount: %s\nPayment %d was captured but no copy was in stock",
		b.ID, userLabel(b), b.Book, lending.FormatCents(p.AmountCents), p.ID,
	)
}

func bookReturnedMessage(b *model.Borrowing, returned time.Time) string {
	return fmt.Sprintf(
		"Book returned for borrowing #%d\nUser: %s\nBook: %s\nReturned: %s",
		b.ID, userLabel(b), b.Book, returned.Format(time.DateOnly),
	)
}

func overdueMessage(b *model.Borrowing, today time.Time) string {
	return fmt.Sprintf(
		"Overdue borrowing #%d\nUser: %s\nBook: %s\nExpected return: %s\nDays overdue: %d",
		b.ID, userLabel(b), b.Book, b.ExpectedReturnDate.Format(time.DateOnly),
		lending.DaysBetween(b.ExpectedReturnDate, today),
	)
}

const noOverdueMessage = "No borrowings overdue today!"

func userLabel(b *model.Borrowing) string {
	if b.UserEmail != "" {
		return b.UserEmail
	}
	return b.UserID
}
