package repository

import (
	"context"
	"errors"
	"time"

	"keystore/internal/domain/model"
)

// 未使用のライセンスキーが足りない
var ErrLicenseShortage = errors.New("license shortage")

type LicenseRepository interface {
	// 未使用キーをqty個確保して注文に紐付ける。足りなければErrLicenseShortage
	ClaimForOrder(ctx context.Context, productID string, orderID string, qty int64, at time.Time) ([]model.License, error)
	ListByOrderID(ctx context.Context, orderID string) ([]model.License, error)
}
