package model

import "time"

//在庫変動の履歴（決済確定での減算、キャンセルでの戻し）

type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   string    `gorm:"type:varchar(64);not null;index" json:"product_id"`
	OrderID     *string   `gorm:"type:varchar(36);index" json:"order_id"`
	ActorUserID *string   `gorm:"type:varchar(64);index" json:"actor_user_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
