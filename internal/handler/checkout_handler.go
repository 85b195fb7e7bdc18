package handler

import (
	"net/http"

	"keystore/internal/config"
	"keystore/internal/domain/model"
	"keystore/internal/middleware"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type CheckoutRequest struct {
	Items []model.CartItem `json:"items"`
	Email string           `json:"email"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.JWT) {
	g := e.Group("/checkout")

	//再開はログインユーザーだけ
	g.POST("/resume", h.resume, middleware.AuthJWT(cfg))
	//新規はゲストも可
	g.POST("/session", h.create, middleware.OptionalAuthJWT(cfg))
}

func (h *CheckoutHandler) resume(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
	}

	out, err := h.uc.ResumeCheckout(c.Request().Context(), userID, usecase.ResumeCheckoutInput{
		Items: req.Items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	//ゲストなら空文字
	userID, _ := getUserIDFromContext(c)

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
	}

	out, err := h.uc.CreateCheckout(c.Request().Context(), userID, usecase.CreateCheckoutInput{
		Items: req.Items,
		Email: req.Email,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
