package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"keystore/internal/domain/carthash"
	"keystore/internal/domain/model"
	repo "keystore/internal/repository"
)

const (
	// この時間内に作られたpending注文だけ再開候補にする
	ResumeWindow = 15 * time.Minute

	// プロバイダのセッションはこれより古ければ使わない
	SessionMaxAge = 30 * time.Minute

	maxCartLines = 100

	// 1行あたりの数量上限（統合後も同じ）
	maxLineQuantity = 1000
)

const msgRestartCheckout = "checkout session expired, please restart checkout"

type CheckoutOptions struct {
	ProviderAttempts int
	ProviderBackoff  time.Duration
	Currency         string
}

type CheckoutUsecase struct {
	orders   repo.OrderRepository
	products repo.ProductRepository
	tx       repo.TransactionManager
	gateway  PaymentGateway
	ids      IDGenerator
	clock    Clock
	log      *slog.Logger
	opts     CheckoutOptions
}

func NewCheckoutUsecase(
	orders repo.OrderRepository,
	products repo.ProductRepository,
	tx repo.TransactionManager,
	gateway PaymentGateway,
	ids IDGenerator,
	clock Clock,
	log *slog.Logger,
	opts CheckoutOptions,
) *CheckoutUsecase {
	if opts.ProviderAttempts < 1 {
		opts.ProviderAttempts = 1
	}
	if opts.Currency == "" {
		opts.Currency = "jpy"
	}
	return &CheckoutUsecase{
		orders:   orders,
		products: products,
		tx:       tx,
		gateway:  gateway,
		ids:      ids,
		clock:    clock,
		log:      log,
		opts:     opts,
	}
}

type ResumeCheckoutInput struct {
	Items []model.CartItem
}

type CreateCheckoutInput struct {
	Items []model.CartItem
	Email string
}

type CheckoutSessionOutput struct {
	Success    bool   `json:"success"`
	SessionURL string `json:"sessionUrl"`
	SessionID  string `json:"sessionId"`
	OrderID    string `json:"orderId,omitempty"`
}

// 放棄された決済の再開。DBにもプロバイダにも書き込まない。
func (u *CheckoutUsecase) ResumeCheckout(ctx context.Context, userID string, in ResumeCheckoutInput) (CheckoutSessionOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return CheckoutSessionOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := normalizeCart(in.Items)
	if err != nil {
		return CheckoutSessionOutput{}, err
	}

	hash := carthash.Compute(items)
	now := u.clock.Now()

	order, found, err := u.orders.FindRecentPending(ctx, userID, hash, now.Add(-ResumeWindow))
	if err != nil {
		u.log.ErrorContext(ctx, "resume: order lookup failed", "user_id", userID, "err", err)
		return CheckoutSessionOutput{}, NewRetryError(http.StatusConflict, msgRestartCheckout)
	}
	if !found || order.StripeSessionID == nil || *order.StripeSessionID == "" {
		return CheckoutSessionOutput{}, NewRetryError(http.StatusConflict, msgRestartCheckout)
	}

	sess, err := u.retrieveSession(ctx, *order.StripeSessionID)
	if err != nil {
		u.log.WarnContext(ctx, "resume: session lookup failed",
			"user_id", userID, "order_id", order.ID, "err", err)
		return CheckoutSessionOutput{}, NewRetryError(http.StatusConflict, msgRestartCheckout)
	}
	if !IsReusableSession(sess, now) {
		u.log.InfoContext(ctx, "resume: session not reusable",
			"order_id", order.ID, "status", sess.Status, "payment_status", sess.PaymentStatus)
		return CheckoutSessionOutput{}, NewRetryError(http.StatusConflict, msgRestartCheckout)
	}

	return CheckoutSessionOutput{
		Success:    true,
		SessionURL: sess.URL,
		SessionID:  sess.ID,
	}, nil
}

// URLあり、open、未払い、作成から30分未満
func IsReusableSession(s PaymentSession, now time.Time) bool {
	if s.URL == "" {
		return false
	}
	if s.Status != SessionStatusOpen || s.PaymentStatus != PaymentStatusUnpaid {
		return false
	}
	return now.Sub(s.CreatedAt) < SessionMaxAge
}

// 回数制限つきリトライ。存在しないセッションは即あきらめる
func (u *CheckoutUsecase) retrieveSession(ctx context.Context, sessionID string) (PaymentSession, error) {
	var lastErr error
	for attempt := 1; attempt <= u.opts.ProviderAttempts; attempt++ {
		sess, err := u.gateway.RetrieveSession(ctx, sessionID)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if errors.Is(err, ErrSessionNotFound) || attempt == u.opts.ProviderAttempts {
			break
		}

		wait := u.opts.ProviderBackoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return PaymentSession{}, ctx.Err()
		case <-timer.C:
		}
	}
	return PaymentSession{}, lastErr
}

// 新しい注文と決済セッションを作る（ゲスト可）
func (u *CheckoutUsecase) CreateCheckout(ctx context.Context, userID string, in CreateCheckoutInput) (CheckoutSessionOutput, error) {
	items, err := normalizeCart(in.Items)
	if err != nil {
		return CheckoutSessionOutput{}, err
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return CheckoutSessionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid email")
		}
	}

	hash := carthash.Compute(items)

	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}
	products, err := u.products.FindByIDs(ctx, productIDs)
	if err != nil {
		u.log.ErrorContext(ctx, "checkout: product lookup failed", "err", err)
		return CheckoutSessionOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	orderID := u.ids.NewID()
	now := u.clock.Now()

	var total int64
	lines := make([]SessionLine, 0, len(items))
	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			return CheckoutSessionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product")
		}
		if !strings.EqualFold(p.Currency, u.opts.Currency) {
			return CheckoutSessionOutput{}, NewHTTPError(http.StatusBadRequest, "unsupported currency")
		}
		if p.Inventory < it.Quantity {
			return CheckoutSessionOutput{}, NewHTTPError(http.StatusBadRequest, "out of stock")
		}

		total += p.Price * it.Quantity
		lines = append(lines, SessionLine{Name: p.Name, UnitAmount: p.Price, Quantity: it.Quantity})
		orderItems = append(orderItems, model.OrderItem{
			OrderID:             orderID,
			ProductID:           p.ID,
			Variant:             it.Variant,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            it.Quantity,
			CreatedAt:           now,
		})
	}

	sess, err := u.gateway.CreateSession(ctx, CreateSessionInput{
		OrderID:       orderID,
		CustomerEmail: email,
		Currency:      u.opts.Currency,
		Lines:         lines,
	})
	if err != nil {
		u.log.ErrorContext(ctx, "checkout: create session failed", "order_id", orderID, "err", err)
		return CheckoutSessionOutput{}, NewRetryError(http.StatusServiceUnavailable, "payment provider unavailable, please retry")
	}

	var uid *string
	if strings.TrimSpace(userID) != "" {
		v := userID
		uid = &v
	}
	sessionID := sess.ID
	order := model.Order{
		ID:              orderID,
		UserID:          uid,
		CartHash:        hash,
		Status:          model.OrderStatusPending,
		StripeSessionID: &sessionID,
		TotalAmount:     total,
		Currency:        strings.ToLower(u.opts.Currency),
		CustomerEmail:   email,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}
		return r.OrderItems().CreateBulk(ctx, orderID, orderItems)
	})
	if err != nil {
		u.log.ErrorContext(ctx, "checkout: persist order failed", "order_id", orderID, "err", err)
		// 記録できなかったセッションは払えないようにしておく
		if xerr := u.gateway.ExpireSession(ctx, sess.ID); xerr != nil {
			u.log.WarnContext(ctx, "checkout: expire orphan session failed", "session_id", sess.ID, "err", xerr)
		}
		return CheckoutSessionOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return CheckoutSessionOutput{
		Success:    true,
		SessionURL: sess.URL,
		SessionID:  sess.ID,
		OrderID:    orderID,
	}, nil
}

func validateCartItems(items []model.CartItem) error {
	if len(items) == 0 {
		return NewHTTPError(http.StatusBadRequest, "cart is empty")
	}
	if len(items) > maxCartLines {
		return NewHTTPError(http.StatusBadRequest, "too many items")
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.Variant) == "" {
			return NewHTTPError(http.StatusBadRequest, "invalid item")
		}
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			return NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}
	return nil
}

// 検証してから重複行をまとめる。まとめた後の数量も上限を超えてはいけない
func normalizeCart(items []model.CartItem) ([]model.CartItem, error) {
	if err := validateCartItems(items); err != nil {
		return nil, err
	}
	merged := carthash.NormalizeItems(items)
	for _, it := range merged {
		if it.Quantity > maxLineQuantity {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}
	return merged, nil
}
