package model

import (
	"testing"

	"library-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoverType(t *testing.T) {
	c, err := ParseCoverType(" hard ")
	require.NoError(t, err)
	assert.Equal(t, CoverHard, c)
	assert.Equal(t, "Hardcover", c.Label())

	_, err = ParseCoverType("PAPERBACK")
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.Code(err))
}

func TestParsePaymentEnums(t *testing.T) {
	pt, err := ParsePaymentType("fine")
	require.NoError(t, err)
	assert.Equal(t, PaymentTypeFine, pt)

	_, err = ParsePaymentType("REFUND")
	assert.True(t, apperr.Is(err, apperr.Validation))

	st, err := ParsePaymentStatus("expired")
	require.NoError(t, err)
	assert.Equal(t, PaymentExpired, st)

	_, err = ParsePaymentStatus("CANCELLED")
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestPaymentStatusTransitions(t *testing.T) {
	testCases := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentExpired, true},
		{PaymentPending, PaymentPending, false},
		{PaymentPaid, PaymentExpired, false},
		{PaymentPaid, PaymentPending, false},
		{PaymentExpired, PaymentPaid, false},
		{PaymentExpired, PaymentPending, false},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.False(t, PaymentPending.IsTerminal())
	assert.True(t, PaymentPaid.IsTerminal())
	assert.True(t, PaymentExpired.IsTerminal())

	assert.Equal(t, []PaymentStatus{PaymentPending}, PaymentStatusesFrom(PaymentPaid))
	assert.Equal(t, []PaymentStatus{PaymentPending}, PaymentStatusesFrom(PaymentExpired))
	assert.Empty(t, PaymentStatusesFrom(PaymentPending))
}

func TestPendingKeyAndBookString(t *testing.T) {
	assert.Equal(t, "12:FINE", *PendingKey(12, PaymentTypeFine))

	b := &Book{
		Title:   "Dune",
		Cover:   CoverSoft,
		Authors: []*Author{{FirstName: "Frank", LastName: "Herbert"}},
	}
	assert.Equal(t, "Dune by Frank Herbert (Softcover)", b.String())
}
