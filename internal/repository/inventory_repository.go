package repository

import (
	"context"

	"keystore/internal/domain/model"
)

type InventoryRepository interface {
	// 1文のUPDATEで減算し、減算後の在庫を返す（0未満の防止はDB側）
	Decrease(ctx context.Context, productID string, qty int64) (int64, error)

	// 在庫戻し（キャンセルなど）
	Increase(ctx context.Context, productID string, qty int64) (int64, error)

	// グループの他の商品へ同じ在庫数を反映
	SyncGroup(ctx context.Context, groupID string, sourceProductID string, inventory int64) error

	// 変動履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
