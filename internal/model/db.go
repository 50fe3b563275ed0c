package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Author struct {
	ID        uint   `gorm:"primaryKey"`
	FirstName string `gorm:"size:255;not null"`
	LastName  string `gorm:"size:255;not null"`
}

func (a *Author) FullName() string {
	return a.FirstName + " " + a.LastName
}

type Book struct {
	ID        uint            `gorm:"primaryKey"`
	Title     string          `gorm:"size:255;index;not null"`
	Authors   []*Author       `gorm:"many2many:book_authors"`
	Cover     CoverType       `gorm:"size:4;not null"`
	Inventory int             `gorm:"not null;check:inventory >= 0"` // available copies
	DailyFee  decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String renders "Title by A, B (Hardcover)" for notifications.
func (b *Book) String() string {
	authors := ""
	for i, a := range b.Authors {
		if i > 0 {
			authors += ", "
		}
		authors += a.FullName()
	}
	if authors == "" {
		return fmt.Sprintf("%s (%s)", b.Title, b.Cover.Label())
	}
	return fmt.Sprintf("%s by %s (%s)", b.Title, authors, b.Cover.Label())
}

// Borrowing is one loan of one copy. Rows are never deleted.
// Dates are stored as UTC midnight of the library-local calendar day.
type Borrowing struct {
	ID                 uint   `gorm:"primaryKey"`
	BookID             uint   `gorm:"index;not null"`
	Book               *Book  `gorm:"constraint:OnDelete:RESTRICT"`
	UserID             string `gorm:"size:64;index;not null"`
	UserEmail          string `gorm:"size:255"`
	BorrowDate         time.Time
	ExpectedReturnDate time.Time  `gorm:"index;not null"`
	ActualReturnDate   *time.Time `gorm:"index"`
	OverdueNotifiedOn  *time.Time
	Payments           []*Payment
	CreatedAt          time.Time
}

func (b *Borrowing) IsActive() bool {
	return b.ActualReturnDate == nil
}

// Payment is one money-collection obligation tied to a borrowing.
type Payment struct {
	ID          uint          `gorm:"primaryKey"`
	BorrowingID uint          `gorm:"index;not null"`
	Borrowing   *Borrowing    `gorm:"constraint:OnDelete:RESTRICT"`
	Type        PaymentType   `gorm:"size:16;not null"`
	Status      PaymentStatus `gorm:"size:16;index;not null"`
	AmountCents int64         `gorm:"not null"`
	SessionID   string        `gorm:"size:128;uniqueIndex;not null"` // provider checkout session
	SessionURL  string        `gorm:"size:512"`
	// PendingKey is set only while PENDING; its unique index allows one pending
	// payment per borrowing and type.
	PendingKey     *string `gorm:"size:64;uniqueIndex"`
	FineReturnDate *time.Time
	CreatedAt      time.Time `gorm:"index"`
	PaidAt         *time.Time
	ExpiredAt      *time.Time
}

func PendingKey(borrowingID uint, t PaymentType) *string {
	k := fmt.Sprintf("%d:%s", borrowingID, t)
	return &k
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// JobRun marks a once-per-day job outcome, such as the overdue summary, as delivered for Day.
type JobRun struct {
	Job       string    `gorm:"primaryKey;size:64"`
	Day       time.Time `gorm:"primaryKey"`
	CreatedAt time.Time
}
