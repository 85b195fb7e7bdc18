package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

// 決済プロバイダからのWebhookを受けて注文へ反映する
type WebhookUsecase struct {
	gateway     PaymentGateway
	fulfillment *FulfillmentUsecase
	tx          repo.TransactionManager
	clock       Clock
	log         *slog.Logger
}

func NewWebhookUsecase(gateway PaymentGateway, fulfillment *FulfillmentUsecase, tx repo.TransactionManager, clock Clock, log *slog.Logger) *WebhookUsecase {
	return &WebhookUsecase{gateway: gateway, fulfillment: fulfillment, tx: tx, clock: clock, log: log}
}

// 署名検証→イベント種別ごとに処理。500を返すとプロバイダが再送する
func (u *WebhookUsecase) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := u.gateway.ParseWebhook(payload, signature)
	if err != nil {
		u.log.WarnContext(ctx, "webhook: rejected", "err", err)
		return NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		// 銀行振込など非同期決済はasync_payment_succeededを待つ
		if ev.Session.PaymentStatus != PaymentStatusPaid {
			u.log.InfoContext(ctx, "webhook: checkout completed without payment",
				"event_id", ev.ID, "session_id", ev.Session.ID, "payment_status", ev.Session.PaymentStatus)
			return nil
		}
		return u.fulfill(ctx, ev)
	case EventCheckoutAsyncPaymentSucceeded:
		return u.fulfill(ctx, ev)
	case EventCheckoutExpired:
		if err := u.cancelExpired(ctx, ev); err != nil {
			u.log.ErrorContext(ctx, "webhook: cancel expired failed", "event_id", ev.ID, "err", err)
			return NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		return nil
	default:
		return nil
	}
}

func (u *WebhookUsecase) fulfill(ctx context.Context, ev PaymentEvent) error {
	res, err := u.fulfillment.HandlePaymentConfirmed(ctx, PaymentConfirmation{
		SessionID:     ev.Session.ID,
		EventID:       ev.ID,
		EventType:     ev.Type,
		CustomerEmail: ev.Session.CustomerEmail,
	})
	if errors.Is(err, ErrUnknownSession) {
		u.log.WarnContext(ctx, "webhook: unknown session", "event_id", ev.ID, "session_id", ev.Session.ID)
		return nil
	}
	if err != nil {
		u.log.ErrorContext(ctx, "webhook: fulfillment failed", "event_id", ev.ID, "session_id", ev.Session.ID, "err", err)
		return NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	u.log.InfoContext(ctx, "webhook: payment confirmed",
		"event_id", ev.ID, "order_id", res.OrderID, "duplicate", res.AlreadyProcessed, "licenses", len(res.LicenseKeys))
	return nil
}

// 期限切れセッションのpending注文をcanceledへ
func (u *WebhookUsecase) cancelExpired(ctx context.Context, ev PaymentEvent) error {
	now := u.clock.Now()
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		done, err := r.WebhookEvents().Exists(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("check event: %w", err)
		}
		if done {
			return nil
		}

		order, err := r.Orders().FindByStripeSessionID(ctx, ev.Session.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("find order: %w", err)
		}
		if err == nil {
			if _, err := r.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCanceled, now); err != nil {
				return fmt.Errorf("transition order: %w", err)
			}
		}

		return r.WebhookEvents().MarkProcessed(ctx, ev.ID, ev.Type, now)
	})
}
