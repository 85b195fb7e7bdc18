package handler

import (
	"net/http"

	"keystore/internal/domain/model"
	"keystore/internal/middleware"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func errorJSON(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{
			Success:     false,
			Error:       he.Message,
			ShouldRetry: he.Retry,
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
}

func getUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func getViewer(c echo.Context) (usecase.Viewer, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Viewer{}, false
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Viewer{UserID: id, Role: model.Role(role)}, true
}
