package usecase

import (
	"context"
	"errors"
	"time"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// 決済プロバイダ側のチェックアウトセッション（こちらからは変更しない）
type PaymentSession struct {
	ID            string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	URL           string
	CreatedAt     time.Time
	OrderID       string
	CustomerEmail string
}

type SessionLine struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CreateSessionInput struct {
	OrderID       string
	CustomerEmail string
	Currency      string
	Lines         []SessionLine
}

// 決済WebhookのイベントType
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired               = "checkout.session.expired"
)

type PaymentEvent struct {
	ID      string
	Type    string
	Session PaymentSession
}

// プロバイダにセッションが存在しない
var ErrSessionNotFound = errors.New("payment session not found")

// Webhook署名が不正
var ErrInvalidSignature = errors.New("invalid webhook signature")

type PaymentGateway interface {
	RetrieveSession(ctx context.Context, sessionID string) (PaymentSession, error)
	CreateSession(ctx context.Context, in CreateSessionInput) (PaymentSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, signature string) (PaymentEvent, error)
}

// 商品ページのキャッシュを古い扱いにする（投げっぱなし）
type Revalidator interface {
	MarkStale(ctx context.Context, path string) error
}

// outboxの送信先（Kafka / RabbitMQ）
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}
