package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"keystore/internal/config"
	"keystore/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripeが受け付ける1回の請求の上限（最小単位）
var maxChargeAmount = decimal.NewFromInt(99_999_999)

// checkout/session.Client のうち使う分
type checkoutSessions interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

type StripeGateway struct {
	sessions      checkoutSessions
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg config.Stripe) *StripeGateway {
	sc := client.New(cfg.SecretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, cfg)
}

func newStripeGateway(sessions checkoutSessions, cfg config.Stripe) *StripeGateway {
	return &StripeGateway{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (usecase.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return usecase.PaymentSession{}, mapError(err)
	}
	return toPaymentSession(s), nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, in usecase.CreateSessionInput) (usecase.PaymentSession, error) {
	if len(in.Lines) == 0 {
		return usecase.PaymentSession{}, errors.New("stripe: no line items")
	}
	currency := strings.ToLower(in.Currency)

	total := decimal.Zero
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.Lines))
	for _, l := range in.Lines {
		unit := decimal.NewFromInt(l.UnitAmount)
		total = total.Add(unit.Mul(decimal.NewFromInt(l.Quantity)))

		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	if total.GreaterThan(maxChargeAmount) {
		return usecase.PaymentSession{}, fmt.Errorf("stripe: amount %s %s exceeds limit", total.String(), currency)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(in.OrderID),
		LineItems:         items,
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	params.AddMetadata("order_id", in.OrderID)
	params.SetIdempotencyKey("checkout-" + in.OrderID)
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return usecase.PaymentSession{}, mapError(err)
	}
	return toPaymentSession(s), nil
}

func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return mapError(err)
	}
	return nil
}

// 署名検証してcheckout.sessionイベントだけ中身を読む
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (usecase.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("%w: %v", usecase.ErrInvalidSignature, err)
	}

	out := usecase.PaymentEvent{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || ev.Data == nil {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return usecase.PaymentEvent{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Session = toPaymentSession(&s)
	return out, nil
}

func toPaymentSession(s *stripe.CheckoutSession) usecase.PaymentSession {
	out := usecase.PaymentSession{
		ID:            s.ID,
		Status:        usecase.SessionStatus(s.Status),
		PaymentStatus: usecase.PaymentStatus(s.PaymentStatus),
		URL:           s.URL,
		CreatedAt:     time.Unix(s.Created, 0).UTC(),
		OrderID:       s.Metadata["order_id"],
	}
	if out.OrderID == "" {
		out.OrderID = s.ClientReferenceID
	}
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if out.CustomerEmail == "" {
		out.CustomerEmail = s.CustomerEmail
	}
	return out
}

func mapError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.Code == stripe.ErrorCodeResourceMissing || serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", usecase.ErrSessionNotFound, serr.Msg)
		}
		return fmt.Errorf("stripe %s (%d): %s", serr.Type, serr.HTTPStatusCode, serr.Code)
	}
	return fmt.Errorf("stripe: %w", err)
}
