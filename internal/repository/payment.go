package repository

import (
	"context"
	"fmt"
	"time"

	"library-service/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, paymentID uint) (*model.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error)
	FindPending(ctx context.Context, tx *gorm.DB, borrowingID uint, paymentType model.PaymentType) (*model.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]*model.Payment, error)
	ListPendingForUser(ctx context.Context, userID string) ([]*model.Payment, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, paymentID uint, paidAt time.Time) (bool, error)
	ExpireStale(ctx context.Context, cutoff, expiredAt time.Time) (int64, error)
}

// PaymentFilter narrows List. Zero values match everything.
type PaymentFilter struct {
	UserID string
	Status model.PaymentStatus
	Type   model.PaymentType
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

// Create inserts a payment. A second PENDING payment of the same type for the
// same borrowing violates the pending key index and fails with Conflict.
func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if payment.Status == model.PaymentPending {
		payment.PendingKey = model.PendingKey(payment.BorrowingID, payment.Type)
	}
	err := tx.WithContext(ctx).Create(payment).Error
	return translate(err, fmt.Sprintf("pending %s payment for borrowing %d", payment.Type, payment.BorrowingID))
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, paymentID uint) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Preload("Borrowing.Book.Authors").
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, translate(err, fmt.Sprintf("payment %d", paymentID))
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Preload("Borrowing.Book.Authors").
		Where("session_id = ?", sessionID).
		First(&payment).Error

	if err != nil {
		return nil, translate(err, fmt.Sprintf("payment for session %s", sessionID))
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindPending(ctx context.Context, tx *gorm.DB, borrowingID uint, paymentType model.PaymentType) (*model.Payment, error) {
	var payment model.Payment
	err := dbOr(tx, r.db).WithContext(ctx).
		Where("pending_key = ?", *model.PendingKey(borrowingID, paymentType)).
		First(&payment).Error

	if err != nil {
		return nil, translate(err, fmt.Sprintf("pending %s payment for borrowing %d", paymentType, borrowingID))
	}

	return &payment, nil
}

// List returns payments newest first. A non-empty UserID limits the result to
// that user's borrowings.
func (r *paymentRepoImpl) List(ctx context.Context, filter PaymentFilter) ([]*model.Payment, error) {
	var payments []*model.Payment
	q := r.db.WithContext(ctx).
		Preload("Borrowing.Book.Authors").
		Order("payments.id DESC")

	if filter.UserID != "" {
		q = q.Joins("JOIN borrowings ON borrowings.id = payments.borrowing_id").
			Where("borrowings.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("payments.status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("payments.type = ?", filter.Type)
	}

	if err := q.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepoImpl) ListPendingForUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Preload("Borrowing.Book.Authors").
		Joins("JOIN borrowings ON borrowings.id = payments.borrowing_id").
		Where("borrowings.user_id = ? AND payments.status = ?", userID, model.PaymentPending).
		Order("payments.id DESC").
		Find(&payments).Error

	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}

	return payments, nil
}

// MarkPaid moves a payment from PENDING to PAID. It reports false when the
// payment was no longer PENDING, so concurrent confirmations apply once.
func (r *paymentRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, paymentID uint, paidAt time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", paymentID, model.PaymentStatusesFrom(model.PaymentPaid)).
		Updates(map[string]interface{}{
			"status":      model.PaymentPaid,
			"pending_key": nil,
			"paid_at":     paidAt,
		})

	if res.Error != nil {
		return false, fmt.Errorf("mark payment %d paid: %w", paymentID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ExpireStale moves every PENDING payment created before cutoff to EXPIRED.
func (r *paymentRepoImpl) ExpireStale(ctx context.Context, cutoff, expiredAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("status IN ? AND created_at < ?", model.PaymentStatusesFrom(model.PaymentExpired), cutoff).
		Updates(map[string]interface{}{
			"status":      model.PaymentExpired,
			"pending_key": nil,
			"expired_at":  expiredAt,
		})

	if res.Error != nil {
		return 0, fmt.Errorf("expire stale payments: %w", res.Error)
	}
	return res.RowsAffected, nil
}
