package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers; handlers map it to an HTTP status.
type Kind string

const (
	Validation          Kind = "VALIDATION"
	Inventory           Kind = "INVENTORY"
	Conflict            Kind = "CONFLICT"
	NotFound            Kind = "NOT_FOUND"
	Forbidden           Kind = "FORBIDDEN"
	AlreadyProcessed    Kind = "ALREADY_PROCESSED"
	ExternalService     Kind = "EXTERNAL_SERVICE"
	PaymentNotCompleted Kind = "PAYMENT_NOT_COMPLETED"
)

type codedError struct {
	kind Kind
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *codedError) Unwrap() error { return e.err }
func (e *codedError) Code() Kind    { return e.kind }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &codedError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to cause. The cause stays reachable through errors.Is/As.
func Wrap(kind Kind, err error, msg string) error {
	return &codedError{kind: kind, msg: msg, err: err}
}

// Code extracts the kind of err, or "" for uncoded errors.
func Code(err error) Kind {
	var ce interface{ Code() Kind }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return Code(err) == kind
}
