package model

import "time"

// 処理済みの決済Webhookイベント（二重処理防止）
type WebhookEvent struct {
	EventID     string    `gorm:"type:varchar(128);primaryKey"`
	EventType   string    `gorm:"type:varchar(64);index"`
	ProcessedAt time.Time `gorm:"not null"`
}
