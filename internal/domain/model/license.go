package model

import "time"

// 事前登録されたライセンスキー。1度使ったら再利用しない。
type License struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string     `gorm:"type:varchar(64);not null;index:idx_licenses_free,priority:1" json:"product_id"`
	KeyCode   string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"key_code"`
	IsUsed    bool       `gorm:"not null;default:false;index:idx_licenses_free,priority:2" json:"is_used"`
	OrderID   *string    `gorm:"type:varchar(36);index" json:"order_id"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}
