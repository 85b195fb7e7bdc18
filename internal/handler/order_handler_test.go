package handler_test

import (
	"net/http"
	"testing"
	"time"

	"keystore/internal/domain/model"
	"keystore/internal/handler"
	infrarepo "keystore/internal/infra/repository"
	"keystore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOrderServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()

	gdb := newTestDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	inv := usecase.NewInventoryReconciler(tx, nopRevalidator{}, fixedClock{}, discardLogger())

	e := echo.New()
	handler.NewOrderHandler(usecase.NewOrderUsecase(tx)).RegisterRoutes(e, jwtCfg)
	handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(tx, new(GatewayMock), inv, fixedClock{}, discardLogger())).RegisterRoutes(e, jwtCfg)
	handler.NewProductHandler(usecase.NewProductUsecase(tx, inv, fixedClock{}, discardLogger())).RegisterRoutes(e, jwtCfg)
	return e, gdb
}

func seedTwoOrders(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	seedOrder(t, gdb, model.Order{ID: "o-mine", UserID: strPtr("user-1"), CartHash: "h1", Status: model.OrderStatusPending, TotalAmount: 1500})
	seedOrder(t, gdb, model.Order{ID: "o-other", UserID: strPtr("user-2"), CartHash: "h2", Status: model.OrderStatusPending, TotalAmount: 3000, CreatedAt: testNow.Add(-2 * time.Minute)})
}

func TestOrderHandler_List_OnlyMine(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)

	rec := doJSON(t, e, http.MethodGet, "/orders", bearer(t, "user-1", "USER"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[[]usecase.OrderOutput](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "o-mine", out[0].ID)
}

func TestOrderHandler_Detail_OtherUserIs404(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)

	rec := doJSON(t, e, http.MethodGet, "/orders/o-other", bearer(t, "user-1", "USER"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_Detail_AdminCanRead(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)

	rec := doJSON(t, e, http.MethodGet, "/orders/o-other", bearer(t, "admin-1", "ADMIN"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o-other", decode[usecase.OrderOutput](t, rec).ID)
}

func TestOrderHandler_Unauthorized(t *testing.T) {
	e, _ := newOrderServer(t)

	rec := doJSON(t, e, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOrderHandler_UserForbidden(t *testing.T) {
	e, _ := newOrderServer(t)

	rec := doJSON(t, e, http.MethodGet, "/admin/orders", bearer(t, "user-1", "USER"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminOrderHandler_List_FilterByUser(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)

	rec := doJSON(t, e, http.MethodGet, "/admin/orders?user_id=user-2", bearer(t, "admin-1", "ADMIN"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[[]usecase.OrderOutput](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "o-other", out[0].ID)
}

func TestAdminOrderHandler_List_BadQuery(t *testing.T) {
	e, _ := newOrderServer(t)
	admin := bearer(t, "admin-1", "ADMIN")

	for _, q := range []string{"page=x", "limit=abc", "limit=500", "status=shipped", "from=yesterday"} {
		rec := doJSON(t, e, http.MethodGet, "/admin/orders?"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAdminOrderHandler_Cancel(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)

	rec := doJSON(t, e, http.MethodPost, "/admin/orders/o-mine/cancel", bearer(t, "admin-1", "ADMIN"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var o model.Order
	require.NoError(t, gdb.First(&o, "id = ?", "o-mine").Error)
	assert.Equal(t, model.OrderStatusCanceled, o.Status)

	var logs []model.AuditLog
	require.NoError(t, gdb.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].ActorUserID)
	assert.Equal(t, model.AuditActionCancelOrder, logs[0].Action)
}

func TestAdminOrderHandler_Cancel_NotFound(t *testing.T) {
	e, _ := newOrderServer(t)

	rec := doJSON(t, e, http.MethodPost, "/admin/orders/missing/cancel", bearer(t, "admin-1", "ADMIN"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOrderHandler_AuditLogs_AfterCancel(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedTwoOrders(t, gdb)
	admin := bearer(t, "admin-1", "ADMIN")

	rec := doJSON(t, e, http.MethodPost, "/admin/orders/o-mine/cancel", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/admin/audit-logs?action=CANCEL_ORDER&resource_id=o-mine", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	logs := decode[[]model.AuditLog](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].ActorUserID)

	rec = doJSON(t, e, http.MethodGet, "/admin/audit-logs?limit=x", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_DetailAndRestock(t *testing.T) {
	e, gdb := newOrderServer(t)
	seedProduct(t, gdb, "p1", 0)

	rec := doJSON(t, e, http.MethodGet, "/products/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[usecase.ProductOutput](t, rec).InStock)

	body := map[string]interface{}{"quantity": 10, "reason": "restock"}
	rec = doJSON(t, e, http.MethodPost, "/admin/products/p1/inventory", bearer(t, "user-1", "USER"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/admin/products/p1/inventory", bearer(t, "admin-1", "ADMIN"), body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/products/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[usecase.ProductOutput](t, rec)
	assert.Equal(t, int64(10), out.Inventory)
	assert.True(t, out.InStock)
}

func TestProductHandler_NotFound(t *testing.T) {
	e, _ := newOrderServer(t)

	rec := doJSON(t, e, http.MethodGet, "/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
