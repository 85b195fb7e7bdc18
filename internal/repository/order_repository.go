package repository

import (
	"context"
	"time"

	"keystore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	FindByStripeSessionID(ctx context.Context, sessionID string) (model.Order, error)

	//再開候補：user+cart_hashでsince以降のpendingを新しい順に1件
	FindRecentPending(ctx context.Context, userID string, cartHash string, since time.Time) (model.Order, bool, error)

	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) error

	//fromの状態のときだけtoへ遷移する。遷移したらtrue
	TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
