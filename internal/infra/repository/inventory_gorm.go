package repository

import (
	"context"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 1文のUPDATEで減らす（同時購入でも取りこぼさない）
func (r *InventoryGormRepository) Decrease(ctx context.Context, productID string, qty int64) (int64, error) {
	return r.add(ctx, productID, -qty)
}

// 在庫戻し（キャンセル）
func (r *InventoryGormRepository) Increase(ctx context.Context, productID string, qty int64) (int64, error) {
	return r.add(ctx, productID, qty)
}

func (r *InventoryGormRepository) add(ctx context.Context, productID string, delta int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("inventory", gorm.Expr("inventory + ?", delta))

	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, repo.ErrNotFound
	}

	//更新後の値を読む（同じtx内なので自分の更新が見える）
	var p model.Product
	if err := r.db.WithContext(ctx).Select("inventory").Where("id = ?", productID).Take(&p).Error; err != nil {
		return 0, err
	}
	return p.Inventory, nil
}

// グループの他の商品へ在庫数をそろえる
func (r *InventoryGormRepository) SyncGroup(ctx context.Context, groupID string, sourceProductID string, inventory int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("group_id = ? AND id <> ?", groupID, sourceProductID).
		Update("inventory", inventory).Error
}

// 変動履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}
