package handler

import (
	"net/http"
	"strings"

	"keystore/internal/config"
	"keystore/internal/middleware"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.JWT) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	viewer, ok := getViewer(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid id"))
	}

	out, err := h.uc.GetOrderDetail(c.Request().Context(), viewer, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
