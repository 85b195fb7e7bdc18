package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
	"keystore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// TxManager / TxRepos
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	products      repo.ProductRepository
	inventory     repo.InventoryRepository
	licenses      repo.LicenseRepository
	outbox        repo.OutboxRepository
	webhookEvents repo.WebhookEventRepository
	auditLogs     repo.AuditLogRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository               { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *TxReposMock) Products() repo.ProductRepository           { return r.products }
func (r *TxReposMock) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *TxReposMock) Licenses() repo.LicenseRepository           { return r.licenses }
func (r *TxReposMock) Outbox() repo.OutboxRepository              { return r.outbox }
func (r *TxReposMock) WebhookEvents() repo.WebhookEventRepository { return r.webhookEvents }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository         { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByStripeSessionID(ctx context.Context, sessionID string) (model.Order, error) {
	args := m.Called(ctx, sessionID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindRecentPending(ctx context.Context, userID string, cartHash string, since time.Time) (model.Order, bool, error) {
	args := m.Called(ctx, userID, cartHash, since)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, from, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Error(1)
}

func (m *ProductRepoMock) ListByGroupID(ctx context.Context, groupID string) ([]model.Product, error) {
	args := m.Called(ctx, groupID)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) Decrease(ctx context.Context, productID string, qty int64) (int64, error) {
	args := m.Called(ctx, productID, qty)
	return args.Get(0).(int64), args.Error(1)
}

func (m *InventoryRepoMock) Increase(ctx context.Context, productID string, qty int64) (int64, error) {
	args := m.Called(ctx, productID, qty)
	return args.Get(0).(int64), args.Error(1)
}

func (m *InventoryRepoMock) SyncGroup(ctx context.Context, groupID string, sourceProductID string, inventory int64) error {
	args := m.Called(ctx, groupID, sourceProductID, inventory)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

type LicenseRepoMock struct{ mock.Mock }

func (m *LicenseRepoMock) ClaimForOrder(ctx context.Context, productID string, orderID string, qty int64, at time.Time) ([]model.License, error) {
	args := m.Called(ctx, productID, orderID, qty, at)
	ls, _ := args.Get(0).([]model.License)
	return ls, args.Error(1)
}

func (m *LicenseRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.License, error) {
	args := m.Called(ctx, orderID)
	ls, _ := args.Get(0).([]model.License)
	return ls, args.Error(1)
}

type OutboxRepoMock struct{ mock.Mock }

func (m *OutboxRepoMock) Enqueue(ctx context.Context, msg model.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *OutboxRepoMock) ListDue(ctx context.Context, now time.Time, maxAttempts int, limit int) ([]model.OutboxMessage, error) {
	args := m.Called(ctx, now, maxAttempts, limit)
	ms, _ := args.Get(0).([]model.OutboxMessage)
	return ms, args.Error(1)
}

func (m *OutboxRepoMock) MarkSent(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *OutboxRepoMock) MarkFailed(ctx context.Context, id string, lastError string, nextAt time.Time) error {
	args := m.Called(ctx, id, lastError, nextAt)
	return args.Error(0)
}

type WebhookEventRepoMock struct{ mock.Mock }

func (m *WebhookEventRepoMock) Exists(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *WebhookEventRepoMock) MarkProcessed(ctx context.Context, eventID string, eventType string, at time.Time) error {
	args := m.Called(ctx, eventID, eventType, at)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// Port mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) RetrieveSession(ctx context.Context, sessionID string) (usecase.PaymentSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(usecase.PaymentSession)
	return s, args.Error(1)
}

func (m *GatewayMock) CreateSession(ctx context.Context, in usecase.CreateSessionInput) (usecase.PaymentSession, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(usecase.PaymentSession)
	return s, args.Error(1)
}

func (m *GatewayMock) ExpireSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *GatewayMock) ParseWebhook(payload []byte, signature string) (usecase.PaymentEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(usecase.PaymentEvent)
	return ev, args.Error(1)
}

type RevalidatorMock struct{ mock.Mock }

func (m *RevalidatorMock) MarkStale(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

// =====================
// helpers
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	ids []string
	i   int
}

func (g *seqIDs) NewID() string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	return id
}

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func newTxMock(r *TxReposMock) *TxManagerMock {
	tx := &TxManagerMock{Repos: r}
	tx.On("WithinTx", mock.Anything).Return(nil)
	return tx
}

func assertHTTPError(t *testing.T, err error, status int) *usecase.HTTPError {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, status, he.Status, he.Message)
	return he
}
