package model

import (
	"strings"

	"library-service/internal/apperr"
)

type CoverType string

const (
	CoverHard CoverType = "HARD"
	CoverSoft CoverType = "SOFT"
)

func ParseCoverType(s string) (CoverType, error) {
	switch c := CoverType(strings.ToUpper(strings.TrimSpace(s))); c {
	case CoverHard, CoverSoft:
		return c, nil
	default:
		return "", apperr.New(apperr.Validation, "unknown cover type %q", s)
	}
}

func (c CoverType) Label() string {
	switch c {
	case CoverHard:
		return "Hardcover"
	case CoverSoft:
		return "Softcover"
	default:
		return string(c)
	}
}

type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT" // initial rental fee
	PaymentTypeFine    PaymentType = "FINE"    // overdue penalty
)

func ParsePaymentType(s string) (PaymentType, error) {
	switch t := PaymentType(strings.ToUpper(strings.TrimSpace(s))); t {
	case PaymentTypePayment, PaymentTypeFine:
		return t, nil
	default:
		return "", apperr.New(apperr.Validation, "unknown payment type %q", s)
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PaymentPending, PaymentPaid, PaymentExpired:
		return st, nil
	default:
		return "", apperr.New(apperr.Validation, "unknown payment status %q", s)
	}
}

var paymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentExpired}

// PaymentStatusesFrom lists the statuses allowed to move to next. Storage
// uses it as the guard of conditional status updates.
func PaymentStatusesFrom(next PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for _, s := range paymentStatuses {
		if s.CanTransition(next) {
			from = append(from, s)
		}
	}
	return from
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentExpired
}

// CanTransition reports whether a payment may move from s to next.
// PENDING is the only non-terminal state.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentExpired
	case PaymentPaid, PaymentExpired:
		return false
	default:
		return false
	}
}
