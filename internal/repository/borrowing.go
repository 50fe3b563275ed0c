package repository

import (
	"context"
	"fmt"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"gorm.io/gorm"
)

type BorrowingFilter struct {
	UserID   string // empty means all users
	IsActive *bool
}

type BorrowingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, borrowing *model.Borrowing) error
	FindByID(ctx context.Context, tx *gorm.DB, borrowingID uint) (*model.Borrowing, error)
	List(ctx context.Context, filter BorrowingFilter) ([]*model.Borrowing, error)
	MarkReturned(ctx context.Context, tx *gorm.DB, borrowingID uint, returnDate time.Time) error
	FindOverdue(ctx context.Context, today time.Time) ([]*model.Borrowing, error)
	ClaimOverdueNotice(ctx context.Context, borrowingID uint, today time.Time) (bool, error)
	ReleaseOverdueNotice(ctx context.Context, borrowingID uint, today time.Time, previous *time.Time) error
}

type borrowingRepoImpl struct {
	db *gorm.DB
}

func NewBorrowingRepository(db *gorm.DB) BorrowingRepository {
	return &borrowingRepoImpl{
		db: db,
	}
}

func (r *borrowingRepoImpl) Create(ctx context.Context, tx *gorm.DB, borrowing *model.Borrowing) error {
	return translate(tx.WithContext(ctx).Create(borrowing).Error, "borrowing")
}

func (r *borrowingRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, borrowingID uint) (*model.Borrowing, error) {
	var borrowing model.Borrowing
	err := dbOr(tx, r.db).WithContext(ctx).
		Preload("Book.Authors").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", borrowingID).
		First(&borrowing).Error

	if err != nil {
		return nil, translate(err, fmt.Sprintf("borrowing %d", borrowingID))
	}

	return &borrowing, nil
}

func (r *borrowingRepoImpl) List(ctx context.Context, filter BorrowingFilter) ([]*model.Borrowing, error) {
	var borrowings []*model.Borrowing
	q := r.db.WithContext(ctx).
		Preload("Book.Authors").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id DESC")

	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.IsActive != nil {
		if *filter.IsActive {
			q = q.Where("actual_return_date IS NULL")
		} else {
			q = q.Where("actual_return_date IS NOT NULL")
		}
	}

	if err := q.Find(&borrowings).Error; err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}

	return borrowings, nil
}

// MarkReturned sets the actual return date once. A second call finds the row
// already returned and fails with Conflict.
func (r *borrowingRepoImpl) MarkReturned(ctx context.Context, tx *gorm.DB, borrowingID uint, returnDate time.Time) error {
	res := tx.WithContext(ctx).Model(&model.Borrowing{}).
		Where("id = ? AND actual_return_date IS NULL", borrowingID).
		Update("actual_return_date", returnDate)

	if res.Error != nil {
		return fmt.Errorf("mark borrowing %d returned: %w", borrowingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.Conflict, "borrowing %d already returned", borrowingID)
	}
	return nil
}

// FindOverdue lists paid, unreturned borrowings past their expected return date.
func (r *borrowingRepoImpl) FindOverdue(ctx context.Context, today time.Time) ([]*model.Borrowing, error) {
	var borrowings []*model.Borrowing
	err := r.db.WithContext(ctx).
		Preload("Book.Authors").
		Where("actual_return_date IS NULL").
		Where("expected_return_date < ?", today).
		Where("EXISTS (SELECT 1 FROM payments p WHERE p.borrowing_id = borrowings.id AND p.type = ? AND p.status = ?)",
			model.PaymentTypePayment, model.PaymentPaid).
		Order("expected_return_date, id").
		Find(&borrowings).Error

	if err != nil {
		return nil, fmt.Errorf("find overdue borrowings: %w", err)
	}

	return borrowings, nil
}

// ClaimOverdueNotice marks the borrowing as reported for today. It returns
// false when another sweep already claimed it.
func (r *borrowingRepoImpl) ClaimOverdueNotice(ctx context.Context, borrowingID uint, today time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Borrowing{}).
		Where("id = ?", borrowingID).
		Where("overdue_notified_on IS NULL OR overdue_notified_on < ?", today).
		Update("overdue_notified_on", today)

	if res.Error != nil {
		return false, fmt.Errorf("claim overdue notice for borrowing %d: %w", borrowingID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseOverdueNotice undoes a claim whose notification could not be sent.
func (r *borrowingRepoImpl) ReleaseOverdueNotice(ctx context.Context, borrowingID uint, today time.Time, previous *time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Borrowing{}).
		Where("id = ? AND overdue_notified_on = ?", borrowingID, today).
		Update("overdue_notified_on", previous).Error

	if err != nil {
		return fmt.Errorf("release overdue notice for borrowing %d: %w", borrowingID, err)
	}
	return nil
}
