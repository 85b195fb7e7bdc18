package server

import (
	"keystore/internal/config"
	"keystore/internal/handler"

	"github.com/labstack/echo/v4"
)

// Handlers は公開するハンドラ一式
type Handlers struct {
	Health     *handler.HealthHandler
	Product    *handler.ProductHandler
	Checkout   *handler.CheckoutHandler
	Webhook    *handler.WebhookHandler
	Order      *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.JWT) {
	h.Health.RegisterRoutes(e)
	h.Product.RegisterRoutes(e, cfg)
	h.Checkout.RegisterRoutes(e, cfg)
	h.Webhook.RegisterRoutes(e)
	h.Order.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
}
