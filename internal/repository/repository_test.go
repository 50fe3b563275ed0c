package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/client"
	"library-service/internal/config"
	"library-service/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.NewDBClient(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "repo.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedBorrowing(t *testing.T, db *gorm.DB, inventory int) (*model.Book, *model.Borrowing) {
	t.Helper()
	book := &model.Book{Title: "Solaris", Cover: model.CoverSoft, Inventory: inventory, DailyFee: decimal.NewFromInt(1)}
	require.NoError(t, db.Create(book).Error)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	borrowing := &model.Borrowing{
		BookID:             book.ID,
		UserID:             "u-1",
		BorrowDate:         day,
		ExpectedReturnDate: day.AddDate(0, 0, 3),
	}
	require.NoError(t, db.Create(borrowing).Error)
	return book, borrowing
}

func TestDecrementInventoryNeverNegative(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookRepository(db)
	ctx := context.Background()
	book, _ := seedBorrowing(t, db, 1)

	require.NoError(t, repo.DecrementInventory(ctx, db, book.ID))

	err := repo.DecrementInventory(ctx, db, book.ID)
	assert.Equal(t, apperr.Inventory, apperr.Code(err))

	got, err := repo.FindByID(ctx, nil, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Inventory)

	require.NoError(t, repo.IncrementInventory(ctx, db, book.ID))
	assert.Equal(t, apperr.NotFound, apperr.Code(repo.IncrementInventory(ctx, db, 404)))
}

func TestOnePendingPaymentPerType(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	_, borrowing := seedBorrowing(t, db, 1)

	first := &model.Payment{BorrowingID: borrowing.ID, Type: model.PaymentTypeFine, Status: model.PaymentPending, AmountCents: 100, SessionID: "S-1"}
	require.NoError(t, repo.Create(ctx, db, first))

	dup := &model.Payment{BorrowingID: borrowing.ID, Type: model.PaymentTypeFine, Status: model.PaymentPending, AmountCents: 100, SessionID: "S-2"}
	assert.Equal(t, apperr.Conflict, apperr.Code(repo.Create(ctx, db, dup)))

	// a pending payment of the other type is allowed
	rental := &model.Payment{BorrowingID: borrowing.ID, Type: model.PaymentTypePayment, Status: model.PaymentPending, AmountCents: 300, SessionID: "S-3"}
	require.NoError(t, repo.Create(ctx, db, rental))

	found, err := repo.FindPending(ctx, nil, borrowing.ID, model.PaymentTypeFine)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	// once paid the key is released and a new fine may be opened
	ok, err := repo.MarkPaid(ctx, db, first.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaid(ctx, db, first.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.FindPending(ctx, nil, borrowing.ID, model.PaymentTypeFine)
	assert.Equal(t, apperr.NotFound, apperr.Code(err))
	require.NoError(t, repo.Create(ctx, db, dup))
}

func TestMarkReturnedOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewBorrowingRepository(db)
	ctx := context.Background()
	_, borrowing := seedBorrowing(t, db, 1)

	day := borrowing.ExpectedReturnDate
	require.NoError(t, repo.MarkReturned(ctx, db, borrowing.ID, day))
	assert.Equal(t, apperr.Conflict, apperr.Code(repo.MarkReturned(ctx, db, borrowing.ID, day)))
}

func TestWebhookEventProcessedOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebhookEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessed(ctx, "WH-1", model.PaypalEventCaptureComplete, time.Now()))
	seen, err := repo.Exists(ctx, "WH-1")
	require.NoError(t, err)
	assert.True(t, seen)

	err = repo.MarkProcessed(ctx, "WH-1", model.PaypalEventCaptureComplete, time.Now())
	assert.Equal(t, apperr.AlreadyProcessed, apperr.Code(err))
}

func TestJobRunClaimedOncePerDay(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRunRepository(db)
	ctx := context.Background()
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	at := day.Add(8 * time.Hour)

	claimed, err := repo.Claim(ctx, "overdue-summary", day, at)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, "overdue-summary", day, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = repo.Claim(ctx, "overdue-summary", day.AddDate(0, 0, 1), at.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, repo.Release(ctx, "overdue-summary", day))
	claimed, err = repo.Claim(ctx, "overdue-summary", day, at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)
}
