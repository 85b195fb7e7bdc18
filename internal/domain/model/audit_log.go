package model

import "time"

// 管理者操作の種類
type AuditAction string

const (
	//注文をキャンセルした操作。
	AuditActionCancelOrder AuditAction = "CANCEL_ORDER"

	//在庫を補充した操作。
	AuditActionRestock AuditAction = "RESTOCK"
)

// 何に対する操作か
type AuditResourceType string

const (
	//注文に対する操作。
	AuditResourceOrder AuditResourceType = "order"

	AuditResourceProduct AuditResourceType = "product"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した管理者のID（IdPのsub）。
	ActorUserID string `gorm:"type:varchar(64);not null;index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
