package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	gateway   PaymentGateway
	inventory *InventoryReconciler
	clock     Clock
	log       *slog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, gateway PaymentGateway, inventory *InventoryReconciler, clock Clock, log *slog.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, gateway: gateway, inventory: inventory, clock: clock, log: log}
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	switch model.OrderStatus(f.Status) {
	case "", model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusCanceled:
	default:
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// キャンセル。paidなら在庫を戻す（キーは使用済みのまま）
func (u *AdminOrderUsecase) Cancel(ctx context.Context, actorAdminUserID string, orderID string) error {
	if strings.TrimSpace(actorAdminUserID) == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	now := u.clock.Now()
	var paths []string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// すでにキャンセル済みなら何もしない（200）
		if o.Status == model.OrderStatusCanceled {
			return nil
		}

		// pendingのセッションは先に閉じる（キャンセル後に支払われないように）
		if o.Status == model.OrderStatusPending && o.StripeSessionID != nil && *o.StripeSessionID != "" {
			if err := u.closeSession(ctx, orderID, *o.StripeSessionID); err != nil {
				return err
			}
		}

		moved, err := r.Orders().TransitionStatus(ctx, orderID, o.Status, model.OrderStatusCanceled, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !moved {
			// 読んでから更新までの間に状態が変わった
			return NewHTTPError(http.StatusConflict, "order status changed, please reload")
		}

		// paidだったときだけ在庫戻し（pendingはまだ減らしていない）
		if o.Status == model.OrderStatusPaid {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			actor := actorAdminUserID
			for _, it := range items {
				p, err := u.inventory.RestoreTx(ctx, r, StockChange{
					ProductID:   it.ProductID,
					Quantity:    it.Quantity,
					OrderID:     &o.ID,
					ActorUserID: &actor,
					Reason:      "admin cancel",
				})
				if err != nil {
					u.log.ErrorContext(ctx, "cancel: restore inventory failed", "order_id", orderID, "err", err)
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				paths = append(paths, p...)
			}
		}

		// 監査ログ（CANCEL_ORDER）
		beforeJSON := `{"status":"` + string(o.Status) + `"}`
		afterJSON := `{"status":"` + string(model.OrderStatusCanceled) + `"}`
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionCancelOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
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

// openならexpireする。完了済みなら支払いが進んでいるのでキャンセルしない
func (u *AdminOrderUsecase) closeSession(ctx context.Context, orderID string, sessionID string) error {
	s, err := u.gateway.RetrieveSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		u.log.ErrorContext(ctx, "cancel: retrieve session failed", "order_id", orderID, "session_id", sessionID, "err", err)
		return NewRetryError(http.StatusServiceUnavailable, "payment provider unavailable, please retry")
	}

	switch s.Status {
	case SessionStatusOpen:
		if err := u.gateway.ExpireSession(ctx, sessionID); err != nil {
			u.log.ErrorContext(ctx, "cancel: expire session failed", "order_id", orderID, "session_id", sessionID, "err", err)
			return NewRetryError(http.StatusServiceUnavailable, "payment provider unavailable, please retry")
		}
		return nil
	case SessionStatusComplete:
		return NewHTTPError(http.StatusConflict, "payment already completed, please reload")
	default:
		return nil
	}
}

// 期間パラメータでtime.Timeが必要なら、handlerでこれを使ってfilterに入れる
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// 監査ログ一覧（新しい順）
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if f.Limit < 1 || f.Limit > 100 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}
