package repository

import (
	"context"
	"errors"

	"keystore/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品の取得だけを約束（商品管理は別システム）。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	//同じgroup_idの商品（自分も含む）
	ListByGroupID(ctx context.Context, groupID string) ([]model.Product, error)
}
