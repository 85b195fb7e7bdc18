package model

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
)

// 1回のチェックアウト試行。
// pending -> paid は決済確定イベントで1回だけ。
type Order struct {
	ID              string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          *string     `gorm:"type:varchar(64);index:idx_orders_resume,priority:1" json:"user_id"`
	CartHash        string      `gorm:"type:char(64);not null;index:idx_orders_resume,priority:2" json:"cart_hash"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StripeSessionID *string     `gorm:"type:varchar(255);uniqueIndex" json:"stripe_session_id"`
	TotalAmount     int64       `gorm:"not null" json:"total_amount"`
	Currency        string      `gorm:"type:varchar(8);not null" json:"currency"`
	CustomerEmail   string      `gorm:"type:varchar(255)" json:"-"`
	CreatedAt       time.Time   `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null" json:"updated_at"`
	PaidAt          *time.Time  `json:"paid_at"`
}

// 所有者かどうか（ゲスト注文は誰の物でもない）
func (o Order) IsOwnedBy(userID string) bool {
	return o.UserID != nil && userID != "" && *o.UserID == userID
}
