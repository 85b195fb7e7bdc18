package handler

import (
	"net/http"
	"strings"

	"keystore/internal/config"
	"keystore/internal/middleware"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 商品の在庫表示と管理者の補充
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

type RestockRequest struct {
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo, cfg config.JWT) {
	e.GET("/products/:id", h.detail)

	admin := e.Group("/admin/products")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())
	admin.POST("/:id/inventory", h.restock)
}

func (h *ProductHandler) detail(c echo.Context) error {
	out, err := h.uc.GetProductDetail(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) restock(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
	}

	err := h.uc.AdminRestock(c.Request().Context(), adminID, strings.TrimSpace(c.Param("id")), usecase.AdminRestockInput{
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "restocked"})
}
