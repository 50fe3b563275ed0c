package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/lending"
	"library-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateBorrowCreatesPendingPayment(t *testing.T) {
	e := newTestEnv(t)
	book := e.seedBook(t, 3, "2.00")

	res, err := e.checkout.InitiateBorrow(context.Background(), reader, book.ID, dateN(5))
	require.NoError(t, err)

	assert.Equal(t, dateN(0), res.Borrowing.BorrowDate)
	assert.Equal(t, dateN(5), res.Borrowing.ExpectedReturnDate)
	assert.Equal(t, "u-1", res.Borrowing.UserID)
	assert.Nil(t, res.Borrowing.ActualReturnDate)

	assert.Equal(t, model.PaymentTypePayment, res.Payment.Type)
	assert.Equal(t, model.PaymentPending, res.Payment.Status)
	assert.Equal(t, int64(1000), res.Payment.AmountCents)
	assert.Equal(t, "https://pay.test/checkout/"+res.Payment.SessionID, res.Payment.SessionURL)
	assert.Equal(t, int64(1000), e.provider.amounts[res.Payment.SessionID])

	// stock is taken on confirmation, not on request
	assert.Equal(t, 3, e.inventory(t, book.ID))
	assert.Equal(t, lending.StatusPendingPayment, e.borrowings.StatusOf(res.Borrowing))
	assert.Equal(t, 1, e.notifier.count("New borrowing #"))
}

func TestInitiateBorrowRejections(t *testing.T) {
	testCases := []struct {
		name      string
		inventory int
		expected  time.Time
		createErr error
		kind      apperr.Kind
	}{
		{"no copies left", 0, dateN(3), nil, apperr.Inventory},
		{"expected date is today", 2, dateN(0), nil, apperr.Validation},
		{"expected date in the past", 2, dateN(-1), nil, apperr.Validation},
		{"provider unavailable", 2, dateN(3), errDown, apperr.ExternalService},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			book := e.seedBook(t, tt.inventory, "1.50")
			e.provider.createErr = tt.createErr

			_, err := e.checkout.InitiateBorrow(context.Background(), reader, book.ID, tt.expected)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.Code(err))

			assert.Zero(t, e.countRows(t, &model.Borrowing{}))
			assert.Zero(t, e.countRows(t, &model.Payment{}))
			assert.Equal(t, tt.inventory, e.inventory(t, book.ID))
			assert.Empty(t, e.notifier.sent())
		})
	}
}

func TestInitiateBorrowUnknownBook(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.checkout.InitiateBorrow(context.Background(), reader, 404, dateN(3))
	assert.Equal(t, apperr.NotFound, apperr.Code(err))
	assert.Zero(t, e.provider.createCalls)
}

func TestConfirmPaymentAppliesOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 2, "2.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(5))
	require.NoError(t, err)
	e.provider.pay(res.Payment.SessionID)

	paid, err := e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.Status)
	assert.Equal(t, 1, e.inventory(t, book.ID))

	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.Code(err))
	assert.Equal(t, 1, e.inventory(t, book.ID))

	stored := e.payment(t, res.Payment.ID)
	assert.Equal(t, model.PaymentPaid, stored.Status)
	assert.Nil(t, stored.PendingKey)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, 1, e.notifier.count("Payment successful"))
}

func TestConfirmPaymentConcurrentCallbacks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 5, "1.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)
	e.provider.pay(res.Payment.SessionID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.AlreadyProcessed, apperr.Code(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, e.inventory(t, book.ID))
}

func TestConfirmPaymentNotCompleted(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 1, "1.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)

	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	assert.Equal(t, apperr.PaymentNotCompleted, apperr.Code(err))

	e.provider.retrieveErr = errDown
	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	assert.Equal(t, apperr.ExternalService, apperr.Code(err))

	assert.Equal(t, model.PaymentPending, e.payment(t, res.Payment.ID).Status)
	assert.Equal(t, 1, e.inventory(t, book.ID))
}

func TestConfirmPaymentUnknownSession(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.checkout.ConfirmPayment(context.Background(), "SESSION-404")
	assert.Equal(t, apperr.NotFound, apperr.Code(err))

	_, err = e.checkout.ConfirmPayment(context.Background(), "")
	assert.Equal(t, apperr.Validation, apperr.Code(err))
}

func TestConfirmAfterExpiryKeepsExpired(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 1, "1.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)

	e.now = day0.Add(31 * time.Minute)
	expired, err := e.jobs.ExpirePendingPayments(ctx, e.now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	e.provider.pay(res.Payment.SessionID)
	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.Code(err))

	stored := e.payment(t, res.Payment.ID)
	assert.Equal(t, model.PaymentExpired, stored.Status)
	assert.NotNil(t, stored.ExpiredAt)
	assert.Equal(t, 1, e.inventory(t, book.ID))

	b, err := e.borrowings.Get(ctx, reader, res.Borrowing.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusCancelled, e.borrowings.StatusOf(b))
}

func TestExpireKeepsFreshPayments(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 1, "1.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)

	expired, err := e.jobs.ExpirePendingPayments(ctx, day0.Add(29*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, model.PaymentPending, e.payment(t, res.Payment.ID).Status)
}

func TestConfirmOversoldRollsBack(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 1, "1.00")

	first, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)
	second, err := e.checkout.InitiateBorrow(ctx, other, book.ID, dateN(2))
	require.NoError(t, err)

	e.provider.pay(first.Payment.SessionID)
	e.provider.pay(second.Payment.SessionID)

	_, err = e.checkout.ConfirmPayment(ctx, first.Payment.SessionID)
	require.NoError(t, err)

	_, err = e.checkout.ConfirmPayment(ctx, second.Payment.SessionID)
	assert.Equal(t, apperr.Inventory, apperr.Code(err))

	assert.Equal(t, 0, e.inventory(t, book.ID))
	assert.Equal(t, model.PaymentPending, e.payment(t, second.Payment.ID).Status)

	assert.Equal(t, 1, e.notifier.count(fmt.Sprintf("Refund required for borrowing #%d", second.Borrowing.ID)))
	assert.Equal(t, 1, e.notifier.count("Payment successful"))
}

func TestHandleWebhookConfirmsOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 2, "1.00")

	res, err := e.checkout.InitiateBorrow(ctx, reader, book.ID, dateN(2))
	require.NoError(t, err)
	e.provider.pay(res.Payment.SessionID)

	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","status":"COMPLETED","supplementary_data":{"related_ids":{"order_id":"` + res.Payment.SessionID + `"}}}}`)

	require.NoError(t, e.checkout.HandleWebhook(ctx, nil, body))
	require.NoError(t, e.checkout.HandleWebhook(ctx, nil, body))

	assert.Equal(t, model.PaymentPaid, e.payment(t, res.Payment.ID).Status)
	assert.Equal(t, 1, e.inventory(t, book.ID))
	assert.Equal(t, 1, e.provider.retrieveCalls)

	// the redirect arriving after the webhook is a no-op
	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	assert.Equal(t, apperr.AlreadyProcessed, apperr.Code(err))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	e := newTestEnv(t)
	e.provider.webhookErr = errDown

	err := e.checkout.HandleWebhook(context.Background(), nil, []byte(`{"id":"WH-2"}`))
	assert.Equal(t, apperr.Validation, apperr.Code(err))
}
