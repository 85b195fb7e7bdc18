package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"keystore/internal/config"
	"keystore/internal/domain/model"
	"keystore/internal/infra/db"
	"keystore/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	jwtCfg  = config.JWT{Secret: "handler-test-secret"}
	testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
)

// =====================
// ports
// =====================

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() string { return g.id }

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) RetrieveSession(ctx context.Context, sessionID string) (usecase.PaymentSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(usecase.PaymentSession)
	return s, args.Error(1)
}

func (m *GatewayMock) CreateSession(ctx context.Context, in usecase.CreateSessionInput) (usecase.PaymentSession, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(usecase.PaymentSession)
	return s, args.Error(1)
}

func (m *GatewayMock) ExpireSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *GatewayMock) ParseWebhook(payload []byte, signature string) (usecase.PaymentEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(usecase.PaymentEvent)
	return ev, args.Error(1)
}

type nopRevalidator struct{}

func (nopRevalidator) MarkStale(ctx context.Context, path string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =====================
// DB
// =====================

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func strPtr(s string) *string { return &s }

func seedProduct(t *testing.T, gdb *gorm.DB, id string, inventory int64) {
	t.Helper()
	require.NoError(t, gdb.Create(&model.Product{
		ID:        id,
		Slug:      id,
		Name:      "Product " + id,
		Price:     1500,
		Currency:  "jpy",
		Inventory: inventory,
		IsActive:  true,
	}).Error)
}

func seedOrder(t *testing.T, gdb *gorm.DB, o model.Order) {
	t.Helper()
	if o.Currency == "" {
		o.Currency = "jpy"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = testNow.Add(-time.Minute)
	}
	o.UpdatedAt = o.CreatedAt
	require.NoError(t, gdb.Create(&o).Error)
}

// =====================
// HTTP
// =====================

func bearer(t *testing.T, sub string, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(jwtCfg.Secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func doJSON(t *testing.T, e *echo.Echo, method string, path string, authz string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	ShouldRetry bool   `json:"shouldRetry"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

