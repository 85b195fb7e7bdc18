package repository

import (
	"context"
	"errors"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 複数IDでまとめて取得（見つからないIDは結果に含まれない）
func (r *ProductGormRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// 同じグループの商品（自分も含む）
func (r *ProductGormRepository) ListByGroupID(ctx context.Context, groupID string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id asc").
		Find(&products).Error
	if err != nil {
		return []model.Product{}, err
	}
	return products, nil
}
