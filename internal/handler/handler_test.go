package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"canteen/internal/config"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/model"
	"canteen/internal/notify"
	"canteen/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *gorm.DB, *notify.Hub) {
	t.Helper()
	db := testutil.NewDB(t)
	hub := notify.NewHub()
	cfg := &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}}
	return SetupRouter(db, cfg, lock.NewLocalLocker(), hub), db, hub
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestHealth(t *testing.T) {
	r, _, _ := setup(t)
	w, body := doJSON(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPassthrough(t *testing.T) {
	r, _, _ := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestCreateAndGetOrder(t *testing.T) {
	r, db, _ := setup(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 0)
	testutil.SeedMerchant(t, db, "01101")
	testutil.SeedDish(t, db, "D001", "01101", "红烧肉", "11.00")

	w, body := doJSON(t, r, http.MethodPost, "/api/orders", `{
		"studentId": "2021001",
		"merchantId": "01101",
		"totalAmount": 22,
		"orderTime": "2024-10-28 11:30:00",
		"details": [{"dishId": "D001", "quantity": 2}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "011012410280001", body["orderId"])

	w, body = doJSON(t, r, http.MethodGet, "/api/orders/011012410280001", "")
	require.Equal(t, http.StatusOK, w.Code)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, "22.00", order["totalAmount"])
	assert.Equal(t, model.OrderStatusPending, order["status"])
	assert.Equal(t, "学生2021001", order["studentName"])
	details := order["details"].([]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, "红烧肉", details[0].(map[string]interface{})["dishName"])
}

func TestCreateOrderValidation(t *testing.T) {
	r, _, _ := setup(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/orders", `{"studentId": "2021001"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["error"])

	w, body = doJSON(t, r, http.MethodPost, "/api/orders", `{"studentId": "2021001", "merchantId": "01101", "totalAmount": "12.00", "details": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestGetOrderNotFound(t *testing.T) {
	r, _, _ := setup(t)
	w, body := doJSON(t, r, http.MethodGet, "/api/orders/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "订单不存在", body["error"])
}

func TestPayOrder(t *testing.T) {
	r, db, _ := setup(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 0)
	testutil.SeedMerchant(t, db, "01101")
	testutil.SeedOrder(t, db, "011012410280004", "2021001", "01101", "22.00", model.OrderStatusPending,
		time.Date(2024, 10, 28, 11, 30, 0, 0, time.Local))

	w, body := doJSON(t, r, http.MethodPost, "/api/student/pay", `{"orderId": "011012410280004", "studentId": "2021001", "payMethod": "校园卡"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "P011012410280004", body["payId"])
	assert.Equal(t, "28.00", body["newBalance"])
	assert.Equal(t, float64(22), body["newPoints"])

	// 重复支付
	w, body = doJSON(t, r, http.MethodPost, "/api/student/pay", `{"orderId": "011012410280004", "studentId": "2021001"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestPayOrderOwnership(t *testing.T) {
	r, db, _ := setup(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 0)
	testutil.SeedStudent(t, db, "2021002", "50.00", 0)
	testutil.SeedMerchant(t, db, "01101")
	testutil.SeedOrder(t, db, "011012410280004", "2021001", "01101", "22.00", model.OrderStatusPending, time.Now())

	w, _ := doJSON(t, r, http.MethodPost, "/api/student/pay", `{"orderId": "011012410280004", "studentId": "2021002"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	r, db, _ := setup(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 0)
	testutil.SeedMerchant(t, db, "01101")
	testutil.SeedOrder(t, db, "011012410280001", "2021001", "01101", "12.00", model.OrderStatusPending, time.Now())

	w, body := doJSON(t, r, http.MethodPatch, "/api/orders/011012410280001", `{"totalAmount": "15.5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "15.50", body["order"].(map[string]interface{})["totalAmount"])

	w, _ = doJSON(t, r, http.MethodPut, "/api/orders/011012410280001", `{"status": "已完成"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPatch, "/api/orders/011012410280001", `{"status": "待支付"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = doJSON(t, r, http.MethodDelete, "/api/orders/011012410280001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, _ = doJSON(t, r, http.MethodDelete, "/api/orders/011012410280001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentAndMerchantQueries(t *testing.T) {
	r, db, _ := setup(t)
	testutil.SeedStudent(t, db, "2021001", "50.00", 12)
	testutil.SeedMerchant(t, db, "01101")
	testutil.SeedOrder(t, db, "011012410280001", "2021001", "01101", "12.00", model.OrderStatusPending, time.Now())
	testutil.SeedOrder(t, db, "011012410280002", "2021001", "01101", "8.00", model.OrderStatusCompleted, time.Now())

	w, body := doJSON(t, r, http.MethodGet, "/api/student/2021001", "")
	require.Equal(t, http.StatusOK, w.Code)
	student := body["student"].(map[string]interface{})
	assert.Equal(t, "50.00", student["balance"])
	assert.Equal(t, float64(12), student["points"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/student/2029999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = doJSON(t, r, http.MethodGet, "/api/student/2021001/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["orders"], 2)

	w, body = doJSON(t, r, http.MethodGet, "/api/merchant/01101/orders?status="+url.QueryEscape(model.OrderStatusCompleted), "")
	require.Equal(t, http.StatusOK, w.Code)
	orders := body["orders"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, "011012410280002", orders[0].(map[string]interface{})["orderId"])

	w, body = doJSON(t, r, http.MethodGet, "/api/merchant/01101/stock", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "stockItems")
}

func TestEmit(t *testing.T) {
	r, _, _ := setup(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/emit", `{"type": "new_order", "payload": {"orderId": "011012410280001"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, body = doJSON(t, r, http.MethodPost, "/api/emit", `{"type": "dish_changed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestSocketReceivesEmit(t *testing.T) {
	r, _, hub := setup(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/socket", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "join-points"}))
	var ack notify.Event
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "joined", ack.Name)
	require.Eventually(t, func() bool { return hub.Subscribers(notify.TopicPoints) == 1 }, time.Second, 10*time.Millisecond)

	w, _ := doJSON(t, r, http.MethodPost, "/api/emit", `{"type": "new_points", "payload": {"points": 22}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var ev notify.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.EventNewPoints, ev.Name)
}
