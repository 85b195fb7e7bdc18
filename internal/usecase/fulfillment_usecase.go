package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

const TopicLicenseDelivered = "license.delivered"

// セッションIDに対応する注文がない（別システムのセッションなど）
var ErrUnknownSession = errors.New("no order for payment session")

type FulfillmentUsecase struct {
	tx        repo.TransactionManager
	inventory *InventoryReconciler
	ids       IDGenerator
	clock     Clock
	log       *slog.Logger
}

func NewFulfillmentUsecase(tx repo.TransactionManager, inventory *InventoryReconciler, ids IDGenerator, clock Clock, log *slog.Logger) *FulfillmentUsecase {
	return &FulfillmentUsecase{tx: tx, inventory: inventory, ids: ids, clock: clock, log: log}
}

type PaymentConfirmation struct {
	SessionID     string
	EventID       string
	EventType     string
	CustomerEmail string
}

type FulfillmentResult struct {
	OrderID          string
	AlreadyProcessed bool
	LicenseKeys      []string
}

// outboxに積むメール送信依頼
type LicenseDeliveredMessage struct {
	OrderID  string             `json:"orderId"`
	Email    string             `json:"email"`
	PaidAt   time.Time          `json:"paidAt"`
	Licenses []DeliveredLicense `json:"licenses"`
}

type DeliveredLicense struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	KeyCode     string `json:"keyCode"`
}

func PaidDedupeKey(orderID string) string {
	return "order-paid:" + orderID
}

// 決済確定。注文の遷移、在庫減算、キー割当、通知の積み込みを1つのTxで行う
func (u *FulfillmentUsecase) HandlePaymentConfirmed(ctx context.Context, in PaymentConfirmation) (FulfillmentResult, error) {
	if in.SessionID == "" {
		return FulfillmentResult{}, fmt.Errorf("%w: empty session id", ErrUnknownSession)
	}

	var (
		res   FulfillmentResult
		paths []string
	)
	now := u.clock.Now()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res = FulfillmentResult{}
		paths = nil

		if in.EventID != "" {
			done, err := r.WebhookEvents().Exists(ctx, in.EventID)
			if err != nil {
				return fmt.Errorf("check event: %w", err)
			}
			if done {
				res.AlreadyProcessed = true
				return nil
			}
		}

		order, err := r.Orders().FindByStripeSessionID(ctx, in.SessionID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUnknownSession
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		res.OrderID = order.ID

		moved, err := r.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusPaid, now)
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		if !moved {
			// paid済み（重複イベント）かcanceled
			res.AlreadyProcessed = true
			if order.Status == model.OrderStatusCanceled {
				u.log.ErrorContext(ctx, "payment confirmed for canceled order", "order_id", order.ID)
			}
			return u.markProcessed(ctx, r, in, now)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}

		msg := LicenseDeliveredMessage{
			OrderID: order.ID,
			Email:   order.CustomerEmail,
			PaidAt:  now,
		}
		if msg.Email == "" {
			msg.Email = in.CustomerEmail
		}

		orderID := order.ID
		for _, it := range items {
			p, err := u.inventory.DecrementTx(ctx, r, StockChange{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				OrderID:   &orderID,
				Reason:    "order paid",
			})
			if err != nil {
				return err
			}
			paths = append(paths, p...)

			keys, err := r.Licenses().ClaimForOrder(ctx, it.ProductID, order.ID, it.Quantity, now)
			if err != nil {
				return fmt.Errorf("claim licenses %s: %w", it.ProductID, err)
			}
			for _, k := range keys {
				res.LicenseKeys = append(res.LicenseKeys, k.KeyCode)
				msg.Licenses = append(msg.Licenses, DeliveredLicense{
					ProductID:   it.ProductID,
					ProductName: it.ProductNameSnapshot,
					KeyCode:     k.KeyCode,
				})
			}
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := r.Outbox().Enqueue(ctx, model.OutboxMessage{
			ID:          u.ids.NewID(),
			Topic:       TopicLicenseDelivered,
			DedupeKey:   PaidDedupeKey(order.ID),
			Payload:     string(payload),
			AvailableAt: now,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("enqueue outbox: %w", err)
		}

		return u.markProcessed(ctx, r, in, now)
	})
	if err != nil {
		return FulfillmentResult{}, err
	}

	u.inventory.Refresh(ctx, paths)
	return res, nil
}

func (u *FulfillmentUsecase) markProcessed(ctx context.Context, r repo.TxRepos, in PaymentConfirmation, at time.Time) error {
	if in.EventID == "" {
		return nil
	}
	if err := r.WebhookEvents().MarkProcessed(ctx, in.EventID, in.EventType, at); err != nil {
		return fmt.Errorf("mark event: %w", err)
	}
	return nil
}
