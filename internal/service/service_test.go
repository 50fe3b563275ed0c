package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"library-service/internal/client"
	"library-service/internal/config"
	"library-service/internal/model"
	"library-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	day0   = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reader = model.Actor{UserID: "u-1", Email: "reader@library.test"}
	other  = model.Actor{UserID: "u-2", Email: "other@library.test"}
	staff  = model.Actor{UserID: "admin", Email: "admin@library.test", IsStaff: true}
)

func dateN(n int) time.Time {
	return time.Date(2026, 3, 1+n, 0, 0, 0, 0, time.UTC)
}

type fakeProvider struct {
	mu            sync.Mutex
	seq           int
	paid          map[string]bool
	amounts       map[string]int64
	createErr     error
	retrieveErr   error
	webhookErr    error
	createCalls   int
	retrieveCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{paid: map[string]bool{}, amounts: map[string]int64{}}
}

func (f *fakeProvider) CreateSession(_ context.Context, req *client.CreateSessionRequest) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	id := fmt.Sprintf("SESSION-%d", f.seq)
	f.amounts[id] = req.AmountCents
	return &client.CheckoutSession{ID: id, URL: "https://pay.test/checkout/" + id}, nil
}

func (f *fakeProvider) RetrieveSession(_ context.Context, sessionID string) (*client.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	status := "CREATED"
	if f.paid[sessionID] {
		status = "COMPLETED"
	}
	return &client.SessionStatus{ID: sessionID, Status: status, Paid: f.paid[sessionID]}, nil
}

func (f *fakeProvider) VerifyWebhookSignature(context.Context, http.Header, []byte) error {
	return f.webhookErr
}

func (f *fakeProvider) pay(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[sessionID] = true
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, _ string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func (n *recordingNotifier) count(prefix string) int {
	c := 0
	for _, m := range n.sent() {
		if strings.HasPrefix(m, prefix) {
			c++
		}
	}
	return c
}

type testEnv struct {
	db       *gorm.DB
	now      time.Time
	provider *fakeProvider
	notifier *recordingNotifier

	bookRepo      repository.BookRepository
	borrowingRepo repository.BorrowingRepository
	paymentRepo   repository.PaymentRepository

	books      BookService
	payments   PaymentService
	checkout   CheckoutService
	returns    ReturnService
	borrowings BorrowingService
	jobs       JobService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := client.NewDBClient(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	e := &testEnv{
		db:       db,
		now:      day0,
		provider: newFakeProvider(),
		notifier: &recordingNotifier{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calendar := NewCalendar(func() time.Time { return e.now }, time.UTC)
	notifications := NewNotifications(e.notifier, "staff-chat", logger)

	e.bookRepo = repository.NewBookRepository(db)
	e.borrowingRepo = repository.NewBorrowingRepository(db)
	e.paymentRepo = repository.NewPaymentRepository(db)
	authorRepo := repository.NewAuthorRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	e.books = NewBookService(e.bookRepo, authorRepo)
	e.payments = NewPaymentService(db, e.provider, e.paymentRepo, calendar,
		"http://library.test", "USD", 30*time.Minute, logger)
	e.checkout = NewCheckoutService(db, e.provider, e.payments, e.bookRepo, e.borrowingRepo,
		webhookRepo, notifications, calendar, logger)
	e.returns = NewReturnService(db, e.payments, e.paymentRepo, e.bookRepo, e.borrowingRepo,
		notifications, calendar, decimal.NewFromInt(2), logger)
	e.borrowings = NewBorrowingService(e.borrowingRepo, calendar)
	e.jobs = NewJobService(e.payments, e.borrowingRepo, repository.NewJobRunRepository(db),
		notifications, time.UTC, logger)

	return e
}

func (e *testEnv) seedBook(t *testing.T, inventory int, fee string) *model.Book {
	t.Helper()
	ctx := context.Background()

	author, err := e.books.CreateAuthor(ctx, "Frank", "Herbert")
	require.NoError(t, err)

	book, err := e.books.CreateBook(ctx, BookInput{
		Title:     "Dune",
		AuthorIDs: []uint{author.ID},
		Cover:     model.CoverHard,
		Inventory: inventory,
		DailyFee:  decimal.RequireFromString(fee),
	})
	require.NoError(t, err)
	return book
}

func (e *testEnv) inventory(t *testing.T, bookID uint) int {
	t.Helper()
	book, err := e.bookRepo.FindByID(context.Background(), nil, bookID)
	require.NoError(t, err)
	return book.Inventory
}

func (e *testEnv) payment(t *testing.T, paymentID uint) *model.Payment {
	t.Helper()
	p, err := e.paymentRepo.FindByID(context.Background(), paymentID)
	require.NoError(t, err)
	return p
}

// borrowPaid creates a borrowing for actor and confirms its rental payment.
func (e *testEnv) borrowPaid(t *testing.T, actor model.Actor, bookID uint, expected time.Time) *model.Borrowing {
	t.Helper()
	ctx := context.Background()

	res, err := e.checkout.InitiateBorrow(ctx, actor, bookID, expected)
	require.NoError(t, err)
	e.provider.pay(res.Payment.SessionID)
	_, err = e.checkout.ConfirmPayment(ctx, res.Payment.SessionID)
	require.NoError(t, err)
	return res.Borrowing
}

func (e *testEnv) countRows(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

var errDown = errors.New("connection refused")
