package model

import "time"

// 状態変更と同じトランザクションで積む通知。リレーが非同期に送る。
type OutboxMessage struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Topic       string     `gorm:"type:varchar(100);not null;index" json:"topic"`
	DedupeKey   string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"dedupe_key"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	AvailableAt time.Time  `gorm:"not null;index" json:"available_at"`
	SentAt      *time.Time `gorm:"index" json:"sent_at"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}
