package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

// 商品マスタは別システム。ここでは在庫の表示と補充だけ
type ProductUsecase struct {
	tx        repo.TransactionManager
	inventory *InventoryReconciler
	clock     Clock
	log       *slog.Logger
}

func NewProductUsecase(tx repo.TransactionManager, inventory *InventoryReconciler, clock Clock, log *slog.Logger) *ProductUsecase {
	return &ProductUsecase{tx: tx, inventory: inventory, clock: clock, log: log}
}

type ProductOutput struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	Price     int64   `json:"price"`
	Currency  string  `json:"currency"`
	Inventory int64   `json:"inventory"`
	InStock   bool    `json:"in_stock"`
	GroupID   *string `json:"group_id,omitempty"`
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID string) (ProductOutput, error) {
	if strings.TrimSpace(productID) == "" {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//非公開は存在しない扱い
		if !p.IsActive {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

type AdminRestockInput struct {
	Quantity int64
	Reason   string
}

// 在庫補充。グループ全体に反映し、監査ログを残す
func (u *ProductUsecase) AdminRestock(ctx context.Context, adminUserID string, productID string, in AdminRestockInput) error {
	if strings.TrimSpace(adminUserID) == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(productID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Quantity < 1 {
		return NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	now := u.clock.Now()
	var paths []string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		actor := adminUserID
		paths, err = u.inventory.RestoreTx(ctx, r, StockChange{
			ProductID:   productID,
			Quantity:    in.Quantity,
			ActorUserID: &actor,
			Reason:      reason,
		})
		if err != nil {
			u.log.ErrorContext(ctx, "restock failed", "product_id", productID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//監査ログ（RESTOCK）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionRestock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"inventory":%d}`, p.Inventory),
			AfterJSON:    fmt.Sprintf(`{"inventory":%d}`, p.Inventory+in.Quantity),
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.inventory.Refresh(ctx, paths)
	return nil
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:        p.ID,
		Slug:      p.Slug,
		Name:      p.Name,
		Price:     p.Price,
		Currency:  p.Currency,
		Inventory: p.Inventory,
		InStock:   p.Inventory > 0,
		GroupID:   p.GroupID,
	}
}
