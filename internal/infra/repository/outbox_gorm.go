package repository

import (
	"context"
	"errors"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"

	"gorm.io/gorm"
)

type OutboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) *OutboxGormRepository {
	return &OutboxGormRepository{db: db}
}

func (r *OutboxGormRepository) Enqueue(ctx context.Context, msg model.OutboxMessage) error {
	err := r.db.WithContext(ctx).Create(&msg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicate
	}
	return err
}

func (r *OutboxGormRepository) ListDue(ctx context.Context, now time.Time, maxAttempts int, limit int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL AND available_at <= ? AND attempts < ?", now, maxAttempts).
		Order("available_at asc").
		Order("created_at asc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return []model.OutboxMessage{}, err
	}
	return msgs, nil
}

func (r *OutboxGormRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 失敗回数を+1して次の送信時刻をずらす
func (r *OutboxGormRepository) MarkFailed(ctx context.Context, id string, lastError string, nextAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   lastError,
			"available_at": nextAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
