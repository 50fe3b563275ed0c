// Package lending holds the pure borrowing and payment rules: calendar days,
// amounts, and the guards of every state transition. It has no storage or
// clock dependency; callers pass "today" in.
package lending

import (
	"math"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Day maps an instant to its calendar day in loc, stored as UTC midnight.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from -> to. Negative when to is earlier.
func DaysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// ToCents converts a currency amount to integer minor units, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// RentalAmount is daily fee x borrowed days, in cents.
func RentalAmount(dailyFee decimal.Decimal, borrowDate, expectedReturn time.Time) int64 {
	days := DaysBetween(borrowDate, expectedReturn)
	if days < 0 {
		days = 0
	}
	return ToCents(dailyFee.Mul(decimal.NewFromInt(int64(days))))
}

// FineAmount is daily fee x days late x multiplier, in cents. Zero when not late.
func FineAmount(dailyFee decimal.Decimal, expectedReturn, returnDate time.Time, multiplier decimal.Decimal) int64 {
	late := DaysBetween(expectedReturn, returnDate)
	if late <= 0 {
		return 0
	}
	return ToCents(dailyFee.Mul(decimal.NewFromInt(int64(late))).Mul(multiplier))
}

// ValidateNewBorrowing checks that a copy is available and the expected
// return date lies strictly after today.
func ValidateNewBorrowing(book *model.Book, today, expectedReturn time.Time) error {
	if book.Inventory <= 0 {
		return apperr.New(apperr.Inventory, "no copies of book %d available", book.ID)
	}
	if !expectedReturn.After(today) {
		return apperr.New(apperr.Validation, "expected return date must be after %s", today.Format(time.DateOnly))
	}
	return nil
}

func IsOverdue(b *model.Borrowing, today time.Time) bool {
	return b.IsActive() && today.After(b.ExpectedReturnDate)
}

type ReturnOutcome string

const (
	ReturnImmediate   ReturnOutcome = "immediate"
	ReturnPendingFine ReturnOutcome = "pending_fine"
)

// DecideReturn picks the return path for b when the book comes back on returnDate.
func DecideReturn(b *model.Borrowing, returnDate time.Time) (ReturnOutcome, error) {
	if !b.IsActive() {
		return "", apperr.New(apperr.Conflict, "borrowing %d already returned", b.ID)
	}
	if returnDate.Before(b.BorrowDate) {
		return "", apperr.New(apperr.Validation, "return date is before borrow date")
	}
	if returnDate.After(b.ExpectedReturnDate) {
		return ReturnPendingFine, nil
	}
	return ReturnImmediate, nil
}

// Status is the borrowing state shown to clients; derived, never stored.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusCancelled      Status = "CANCELLED"
	StatusActive         Status = "ACTIVE"
	StatusOverdue        Status = "OVERDUE"
	StatusReturned       Status = "RETURNED"
)

// StatusOf derives the status of b from its dates and loaded payments.
func StatusOf(b *model.Borrowing, today time.Time) Status {
	if !b.IsActive() {
		return StatusReturned
	}
	if len(b.Payments) > 0 && !InitialPaymentPaid(b) {
		for _, p := range b.Payments {
			if p.Type == model.PaymentTypePayment && p.Status == model.PaymentPending {
				return StatusPendingPayment
			}
		}
		return StatusCancelled
	}
	if IsOverdue(b, today) {
		return StatusOverdue
	}
	return StatusActive
}

// InitialPaymentPaid reports whether the rental fee of b has been confirmed.
func InitialPaymentPaid(b *model.Borrowing) bool {
	for _, p := range b.Payments {
		if p.Type == model.PaymentTypePayment && p.Status == model.PaymentPaid {
			return true
		}
	}
	return false
}
