package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

// 閲覧者（所有者か管理者だけ注文を見られる）
type Viewer struct {
	UserID string
	Role   model.Role
}

func (v Viewer) IsAdmin() bool {
	return v.Role == model.RoleAdmin
}

type OrderItemOutput struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type OrderOutput struct {
	ID          string            `json:"id"`
	UserID      *string           `json:"user_id"`
	Status      string            `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	Currency    string            `json:"currency"`
	CreatedAt   time.Time         `json:"created_at"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	Items       []OrderItemOutput `json:"items"`
	LicenseKeys []string          `json:"license_keys,omitempty"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string) ([]OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングはまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
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

// 注文詳細。支払い済みなら所有者にはライセンスキーも返す
func (u *OrderUsecase) GetOrderDetail(ctx context.Context, viewer Viewer, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(viewer.UserID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		owner := o.IsOwnedBy(viewer.UserID)
		if !owner && !viewer.IsAdmin() {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toOrderOutput(o, items)

		if owner && o.Status == model.OrderStatusPaid {
			licenses, err := r.Licenses().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, l := range licenses {
				out.LicenseKeys = append(out.LicenseKeys, l.KeyCode)
			}
		}
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Variant:   it.Variant,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		Items:       outItems,
	}
}
