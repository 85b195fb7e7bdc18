package repository

import (
	"context"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LicenseGormRepository struct {
	db *gorm.DB
}

func NewLicenseGormRepository(db *gorm.DB) *LicenseGormRepository {
	return &LicenseGormRepository{db: db}
}

// 未使用キーをロックして確保する。他のtxがロック中の行は飛ばす
func (r *LicenseGormRepository) ClaimForOrder(ctx context.Context, productID string, orderID string, qty int64, at time.Time) ([]model.License, error) {
	if qty <= 0 {
		return []model.License{}, nil
	}

	var free []model.License
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("product_id = ? AND is_used = ?", productID, false).
		Order("id asc").
		Limit(int(qty)).
		Find(&free).Error
	if err != nil {
		return nil, err
	}
	if int64(len(free)) < qty {
		return nil, repo.ErrLicenseShortage
	}

	ids := make([]int64, 0, len(free))
	for _, l := range free {
		ids = append(ids, l.ID)
	}

	res := r.db.WithContext(ctx).
		Model(&model.License{}).
		Where("id IN ? AND is_used = ?", ids, false).
		Updates(map[string]interface{}{
			"is_used":  true,
			"order_id": orderID,
			"used_at":  at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != qty {
		return nil, repo.ErrLicenseShortage
	}

	for i := range free {
		free[i].IsUsed = true
		free[i].OrderID = &orderID
		free[i].UsedAt = &at
	}
	return free, nil
}

func (r *LicenseGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.License, error) {
	var licenses []model.License
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&licenses).Error
	if err != nil {
		return []model.License{}, err
	}
	return licenses, nil
}
