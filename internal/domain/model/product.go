package model

import (
	"time"

	"gorm.io/gorm"
)

// GroupIDが同じ商品（エディション違いなど）は在庫プールを共有する。
type Product struct {
	ID        string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Slug      string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Price     int64          `gorm:"not null" json:"price"`
	Currency  string         `gorm:"type:varchar(8);not null;default:'jpy'" json:"currency"`
	Inventory int64          `gorm:"not null" json:"inventory"`
	GroupID   *string        `gorm:"type:varchar(64);index" json:"group_id"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 商品ページのパス（再検証の単位）
func (p Product) PagePath() string {
	return "/products/" + p.Slug
}
