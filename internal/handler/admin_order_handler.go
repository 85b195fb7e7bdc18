package handler

import (
	"net/http"
	"strconv"
	"strings"

	"keystore/internal/config"
	"keystore/internal/domain/model"
	"keystore/internal/middleware"
	"keystore/internal/repository"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.JWT) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.POST("/orders/:id/cancel", h.cancel)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid page"))
		}
		page = p
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid limit"))
		}
		limit = l
	}

	status := c.QueryParam("status")

	var userID *string
	if v := strings.TrimSpace(c.QueryParam("user_id")); v != "" {
		userID = &v
	}

	f := repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: status,
		UserID: userID,
	}

	if v := c.QueryParam("from"); v != "" {
		tm, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid from"))
		}
		f.From = tm
	}
	if v := c.QueryParam("to"); v != "" {
		tm, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid to"))
		}
		f.To = tm
	}

	out, err := h.uc.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) cancel(c echo.Context) error {
	// ★操作した管理者ID（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid id"))
	}

	if err := h.uc.Cancel(c.Request().Context(), adminID, orderID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "canceled"})
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	f := repository.AuditLogFilter{Limit: 50}

	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid limit"))
		}
		f.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON("invalid offset"))
		}
		f.Offset = o
	}
	if v := strings.TrimSpace(c.QueryParam("actor_user_id")); v != "" {
		f.ActorUserID = &v
	}
	if v := strings.TrimSpace(c.QueryParam("action")); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := strings.TrimSpace(c.QueryParam("resource_type")); v != "" {
		rt := model.AuditResourceType(v)
		f.ResourceType = &rt
	}
	if v := strings.TrimSpace(c.QueryParam("resource_id")); v != "" {
		f.ResourceID = &v
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
