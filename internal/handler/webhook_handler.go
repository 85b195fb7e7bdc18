package handler

import (
	"io"
	"net/http"

	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Stripeのイベントは64KBあれば足りる
const maxWebhookBody = 65536

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/stripe", h.stripe)
}

func (h *WebhookHandler) stripe(c echo.Context) error {
	//署名検証は生のbodyで行うのでBindしない
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if err := h.uc.HandleStripeEvent(c.Request().Context(), payload, sig); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
