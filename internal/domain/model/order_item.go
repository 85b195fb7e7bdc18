package model

import "time"

type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID           string    `gorm:"type:varchar(64);not null;index" json:"product_id"`
	Variant             string    `gorm:"type:varchar(50);not null" json:"variant"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64     `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
