package repository

import (
	"context"

	repo "keystore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	products      repo.ProductRepository
	inventory     repo.InventoryRepository
	licenses      repo.LicenseRepository
	outbox        repo.OutboxRepository
	webhookEvents repo.WebhookEventRepository
	auditLogs     repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository               { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *txReposGorm) Products() repo.ProductRepository           { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *txReposGorm) Licenses() repo.LicenseRepository           { return r.licenses }
func (r *txReposGorm) Outbox() repo.OutboxRepository              { return r.outbox }
func (r *txReposGorm) WebhookEvents() repo.WebhookEventRepository { return r.webhookEvents }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository         { return r.auditLogs }

// db（またはtx）から全repoを作る
func newRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		orders:        NewOrderGormRepository(db),
		orderItems:    NewOrderItemGormRepository(db),
		products:      NewProductGormRepository(db),
		inventory:     NewInventoryGormRepository(db),
		licenses:      NewLicenseGormRepository(db),
		outbox:        NewOutboxGormRepository(db),
		webhookEvents: NewWebhookEventGormRepository(db),
		auditLogs:     NewAuditLogGormRepository(db),
	}
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newRepos(tx))
	})
}
