package repository

import (
	"context"
	"time"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	Exists(ctx context.Context, payPalEventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, processedAt time.Time) error
}

type webhookEventRepositoryIml struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryIml{db: db}
}

func (r *webhookEventRepositoryIml) Exists(ctx context.Context, payPalEventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", payPalEventID).
		Count(&count).Error

	return count > 0, err
}

// MarkProcessed records a handled event. Recording the same event twice
// yields AlreadyProcessed.
func (r *webhookEventRepositoryIml) MarkProcessed(ctx context.Context, eventID string, eventType string, processedAt time.Time) error {
	err := r.db.WithContext(ctx).Create(&model.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: processedAt,
	}).Error

	err = translate(err, "webhook event "+eventID)
	if apperr.Is(err, apperr.Conflict) {
		return apperr.New(apperr.AlreadyProcessed, "webhook event %s already processed", eventID)
	}
	return err
}
