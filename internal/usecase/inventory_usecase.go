package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

// 在庫の増減とグループ同期、コミット後の商品ページ再検証
type InventoryReconciler struct {
	tx          repo.TransactionManager
	revalidator Revalidator
	clock       Clock
	log         *slog.Logger
}

func NewInventoryReconciler(tx repo.TransactionManager, revalidator Revalidator, clock Clock, log *slog.Logger) *InventoryReconciler {
	return &InventoryReconciler{tx: tx, revalidator: revalidator, clock: clock, log: log}
}

type StockChange struct {
	ProductID   string
	Quantity    int64
	OrderID     *string
	ActorUserID *string
	Reason      string
}

var ErrInvalidStockChange = errors.New("invalid stock change")

// 決済確定などで在庫を減らす。失敗したら何も書かない
func (u *InventoryReconciler) Reconcile(ctx context.Context, ch StockChange) error {
	return u.run(ctx, ch, u.DecrementTx)
}

// キャンセルなどで在庫を戻す
func (u *InventoryReconciler) Restore(ctx context.Context, ch StockChange) error {
	return u.run(ctx, ch, u.RestoreTx)
}

func (u *InventoryReconciler) run(ctx context.Context, ch StockChange, apply func(context.Context, repo.TxRepos, StockChange) ([]string, error)) error {
	var paths []string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := apply(ctx, r, ch)
		if err != nil {
			return err
		}
		paths = p
		return nil
	})
	if err != nil {
		return err
	}

	u.Refresh(ctx, paths)
	return nil
}

// Tx内で減算。再検証すべきページのパスを返す
func (u *InventoryReconciler) DecrementTx(ctx context.Context, r repo.TxRepos, ch StockChange) ([]string, error) {
	return u.applyTx(ctx, r, ch, -1)
}

// Tx内で加算
func (u *InventoryReconciler) RestoreTx(ctx context.Context, r repo.TxRepos, ch StockChange) ([]string, error) {
	return u.applyTx(ctx, r, ch, 1)
}

func (u *InventoryReconciler) applyTx(ctx context.Context, r repo.TxRepos, ch StockChange, sign int64) ([]string, error) {
	if ch.ProductID == "" || ch.Quantity <= 0 {
		return nil, ErrInvalidStockChange
	}

	var (
		left int64
		err  error
	)
	if sign < 0 {
		left, err = r.Inventory().Decrease(ctx, ch.ProductID, ch.Quantity)
	} else {
		left, err = r.Inventory().Increase(ctx, ch.ProductID, ch.Quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("update inventory %s: %w", ch.ProductID, err)
	}

	p, err := r.Products().FindByID(ctx, ch.ProductID)
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", ch.ProductID, err)
	}

	paths := []string{p.PagePath()}
	if p.GroupID != nil && *p.GroupID != "" {
		if err := r.Inventory().SyncGroup(ctx, *p.GroupID, p.ID, left); err != nil {
			return nil, fmt.Errorf("sync group %s: %w", *p.GroupID, err)
		}
		siblings, err := r.Products().ListByGroupID(ctx, *p.GroupID)
		if err != nil {
			return nil, fmt.Errorf("list group %s: %w", *p.GroupID, err)
		}
		for _, s := range siblings {
			if s.ID == p.ID {
				continue
			}
			paths = append(paths, s.PagePath())
		}
	}

	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   ch.ProductID,
		OrderID:     ch.OrderID,
		ActorUserID: ch.ActorUserID,
		Delta:       sign * ch.Quantity,
		Reason:      ch.Reason,
		CreatedAt:   u.clock.Now(),
	}); err != nil {
		return nil, fmt.Errorf("create adjustment: %w", err)
	}

	return paths, nil
}

// コミット後に呼ぶ。失敗はログだけ（リトライしない）
func (u *InventoryReconciler) Refresh(ctx context.Context, paths []string) {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}

		if err := u.revalidator.MarkStale(ctx, path); err != nil {
			u.log.WarnContext(ctx, "revalidate failed", "path", path, "err", err)
		}
	}
}
