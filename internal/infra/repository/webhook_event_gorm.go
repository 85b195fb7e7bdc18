package repository

import (
	"context"
	"errors"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"

	"gorm.io/gorm"
)

type WebhookEventGormRepository struct {
	db *gorm.DB
}

func NewWebhookEventGormRepository(db *gorm.DB) *WebhookEventGormRepository {
	return &WebhookEventGormRepository{db: db}
}

func (r *WebhookEventGormRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *WebhookEventGormRepository) MarkProcessed(ctx context.Context, eventID string, eventType string, at time.Time) error {
	err := r.db.WithContext(ctx).Create(&model.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: at,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicate
	}
	return err
}
