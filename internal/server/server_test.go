package server_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/config"
	"jewelry-checkout/internal/dto"
	"jewelry-checkout/internal/middleware"
	"jewelry-checkout/internal/model"
	"jewelry-checkout/internal/repository"
	"jewelry-checkout/internal/server"
	"jewelry-checkout/internal/service"
	"jewelry-checkout/internal/testutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jwtSecret     = "test-jwt-secret"
	phonePeSecret = "test-client-secret"
)

// phonePeGateway answers the three PhonePe endpoints the server talks to.
type phonePeGateway struct {
	payStatus int
	payBody   string
	// paise reported by the status endpoint, 18000 when zero
	statusAmount int64
}

func (g *phonePeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/oauth/token":
		io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	case r.URL.Path == "/pg/v1/pay":
		status := g.payStatus
		if status == 0 {
			status = http.StatusOK
		}
		body := g.payBody
		if body == "" {
			body = `{"orderId":"OMO42","state":"PENDING"}`
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	case strings.HasPrefix(r.URL.Path, "/pg/v1/status/"):
		amount := g.statusAmount
		if amount == 0 {
			amount = 18000
		}
		fmt.Fprintf(w, `{"orderId":"OMO42","state":"COMPLETED","amount":%d,"paymentDetails":[{"transactionId":"OM42","paymentMode":"UPI_QR","state":"COMPLETED"}]}`, amount)
	default:
		http.NotFound(w, r)
	}
}

type testServer struct {
	db      *gorm.DB
	handler http.Handler
	gateway *phonePeGateway
}

func newTestServer(t *testing.T, httpCfg config.HTTPServer) *testServer {
	t.Helper()

	gw := &phonePeGateway{}
	gwSrv := httptest.NewServer(gw)
	t.Cleanup(gwSrv.Close)

	cfg := &config.Config{
		HTTP:       httpCfg,
		AppBaseURL: "https://shop.example.in",
		JWTSecret:  jwtSecret,
		PhonePe: config.PhonePe{
			ClientID:      "M22JEWEL_UAT",
			ClientSecret:  phonePeSecret,
			ClientVersion: "1",
			BaseApiURL:    gwSrv.URL,
			AuthBaseURL:   gwSrv.URL,
			Timeout:       5 * time.Second,
			BrandPrefix:   "JWL",
		},
	}

	db := testutil.NewSQLite(t)
	log := zap.NewNop()

	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	sequenceRepo := repository.NewOrderSequenceRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	phonePe, err := client.NewPhonePeClient(&cfg.PhonePe, cfg.AppBaseURL, client.NewMemoryTokenCache(), log)
	require.NoError(t, err)

	events := client.NewEventPublisher(cfg.Kafka, log)
	orders := service.NewOrderService(db, productRepo, inventoryRepo, orderRepo, sequenceRepo, events, log)
	payments := service.NewPaymentService(db, phonePe, orders, orderRepo, webhookEventRepo, events,
		service.PaymentConfig{BrandPrefix: "JWL", InitialBackoff: time.Millisecond}, log)
	products := service.NewProductService(productRepo, inventoryRepo)

	srv := server.NewServer(cfg, log, orders, payments, products)
	return &testServer{db: db, handler: srv.Handler(), gateway: gw}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(jwtSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func orderBody(method string, items ...string) string {
	return fmt.Sprintf(`{
		"items": [%s],
		"customer": {"name": "Asha Rao", "email": "asha@example.in", "phone": "+91 98765 43210"},
		"address": {"line1": "12 MG Road", "city": "Bengaluru", "state": "Karnataka", "pincode": "560001"},
		"paymentMethod": %q
	}`, strings.Join(items, ","), method)
}

func item(productID string, qty int) string {
	return fmt.Sprintf(`{"productId": %q, "quantity": %d}`, productID, qty)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodePlaced(t *testing.T, rec *httptest.ResponseRecorder) dto.PlaceOrderResponse {
	t.Helper()
	var resp dto.PlaceOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.NotNil(t, resp.Order)
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})

	rec := s.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "100", "10", 5)

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 2)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodePlaced(t, rec)
	assert.Equal(t, int64(1), resp.Order.OrderNumber)
	assert.Equal(t, "180.00", resp.Order.TotalPrice.StringFixed(2))
	assert.Equal(t, model.PaymentMethodCOD, resp.Order.PaymentMethod)
	assert.Nil(t, resp.Order.UserID)
	assert.Nil(t, resp.Payment)
	assert.Nil(t, resp.PaymentError)
	assert.Equal(t, 3, testutil.Stock(t, s.db, "ring"))
}

func TestPlaceOrder_RejectsMalformedBodies(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "100", "0", 5)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown field", `{"items":[],"totalPrice":1}`, http.StatusBadRequest, "INVALID_BODY"},
		{"trailing data", orderBody("cod", item("ring", 1)) + `{}`, http.StatusBadRequest, "INVALID_BODY"},
		{"not json", `items=ring`, http.StatusBadRequest, "INVALID_BODY"},
		{"empty cart", orderBody("cod"), http.StatusBadRequest, "EMPTY_CART"},
		{"zero quantity", orderBody("cod", item("ring", 0)), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"negative quantity", orderBody("cod", item("ring", -1)), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"unknown method", orderBody("card", item("ring", 1)), http.StatusBadRequest, "INVALID_PAYMENT_METHOD"},
		{
			"bad email",
			strings.Replace(orderBody("cod", item("ring", 1)), "asha@example.in", "asha@", 1),
			http.StatusBadRequest, "INVALID_EMAIL",
		},
		{
			"missing name",
			strings.Replace(orderBody("cod", item("ring", 1)), `"Asha Rao"`, `""`, 1),
			http.StatusBadRequest, "MISSING_FIELDS",
		},
		{
			"short phone",
			strings.Replace(orderBody("cod", item("ring", 1)), "+91 98765 43210", "98765", 1),
			http.StatusBadRequest, "INVALID_PHONE",
		},
		{
			"bad pincode",
			strings.Replace(orderBody("cod", item("ring", 1)), "560001", "56000", 1),
			http.StatusBadRequest, "INVALID_PINCODE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/orders", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}

	assert.Equal(t, 5, testutil.Stock(t, s.db, "ring"))
}

func TestPlaceOrder_StockAndCatalogErrors(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "100", "0", 1)

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 2)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)
	assert.Contains(t, resp.Error, "Product ring")
	assert.NotEmpty(t, resp.Suggestion)

	rec = s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1), item("ghost", 1)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decodeError(t, rec).Code)

	assert.Equal(t, 1, testutil.Stock(t, s.db, "ring"))
}

func TestPlaceOrder_OnlineStartsPayment(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("online", item("ring", 2)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodePlaced(t, rec)
	require.NotNil(t, resp.Payment)
	assert.Nil(t, resp.PaymentError)
	assert.Equal(t, "https://mercury-uat.phonepe.com/transact/uat_v2?token=OMO42", resp.Payment.PaymentURL)
	assert.Regexp(t, `^JWL-\d+-[0-9A-F]{8}$`, resp.Payment.MerchantOrderID)

	var stored model.Order
	require.NoError(t, s.db.First(&stored, resp.Order.ID).Error)
	require.NotNil(t, stored.MerchantOrderID)
	assert.Equal(t, resp.Payment.MerchantOrderID, *stored.MerchantOrderID)
	assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)
}

func TestPlaceOrder_OnlineGatewayFailureKeepsOrder(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	s.gateway.payStatus = http.StatusBadRequest
	s.gateway.payBody = `{"success":false,"code":"KEY_NOT_CONFIGURED","message":"Key not configured"}`
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("online", item("ring", 1)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodePlaced(t, rec)
	assert.Nil(t, resp.Payment)
	require.NotNil(t, resp.PaymentError)
	assert.Equal(t, "MERCHANT_NOT_CONFIGURED", resp.PaymentError.Code)
	assert.Equal(t, "switch to cash on delivery", resp.PaymentError.Suggestion)
	assert.Equal(t, 4, testutil.Stock(t, s.db, "ring"))
}

func TestPlaceOrder_OnlineWithCompletedPayment(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	body := strings.Replace(orderBody("online", item("ring", 2)), `"paymentMethod"`, `"merchantOrderId": "JWL-1-ABCDEF12", "paymentId": "OM42", "paymentMethod"`, 1)
	rec := s.do(t, http.MethodPost, "/api/orders", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodePlaced(t, rec)
	assert.Nil(t, resp.PaymentError)
	assert.Equal(t, model.PaymentStatusCompleted, resp.Order.PaymentStatus)
}

func TestPlaceOrder_ClaimedPaymentMustCoverTotal(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	s.gateway.statusAmount = 100
	testutil.CreateProduct(t, s.db, "ring", "45999", "0", 5)

	body := strings.Replace(orderBody("online", item("ring", 1)), `"paymentMethod"`, `"merchantOrderId": "JWL-claimed", "paymentMethod"`, 1)
	rec := s.do(t, http.MethodPost, "/api/orders", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodePlaced(t, rec)
	assert.Equal(t, model.PaymentStatusPending, resp.Order.PaymentStatus)

	var stored model.Order
	require.NoError(t, s.db.First(&stored, resp.Order.ID).Error)
	assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)
}

func TestPlaceOrder_TrimsEmailBeforeValidating(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	body := strings.Replace(orderBody("cod", item("ring", 1)), `"asha@example.in"`, `"  Asha@Example.in "`, 1)
	rec := s.do(t, http.MethodPost, "/api/orders", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "asha@example.in", decodePlaced(t, rec).Order.CustomerEmail)
}

func TestListOrders_RequiresToken(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	asha := token(t, "user-asha", middleware.RoleCustomer)

	rec := s.do(t, http.MethodGet, "/api/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/orders", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", asha, orderBody("cod", item("ring", 1))).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1))).Code)

	rec = s.do(t, http.MethodGet, "/api/orders", asha, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].UserID)
	assert.Equal(t, "user-asha", *orders[0].UserID)
}

func TestPlaceOrder_InvalidTokenIsRejected(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	expired, err := middleware.IssueToken(jwtSecret, "user-asha", middleware.RoleCustomer, -time.Minute)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/orders", expired, orderBody("cod", item("ring", 1)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 5, testutil.Stock(t, s.db, "ring"))
}

func TestGetOrder_Visibility(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	asha := token(t, "user-asha", middleware.RoleCustomer)
	ravi := token(t, "user-ravi", middleware.RoleCustomer)
	admin := token(t, "ops-1", middleware.RoleAdmin)

	owned := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", asha, orderBody("cod", item("ring", 1)))).Order
	guest := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1)))).Order

	ownedPath := fmt.Sprintf("/api/orders/%d", owned.ID)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, ownedPath, "", "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, ownedPath, ravi, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, ownedPath, asha, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, ownedPath, admin, "").Code)

	guestPath := fmt.Sprintf("/api/orders/%d", guest.ID)
	rec := s.do(t, http.MethodGet, guestPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "ring", got.Items[0].ProductID)

	rec = s.do(t, http.MethodGet, "/api/orders/999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/orders/abc", "", "").Code)
}

func TestAdmin_UpdateOrderStatus(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	customer := token(t, "user-asha", middleware.RoleCustomer)
	admin := token(t, "ops-1", middleware.RoleAdmin)

	order := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 2)))).Order
	path := fmt.Sprintf("/api/admin/orders/%d/status", order.ID)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPatch, path, "", `{"status":"packed"}`).Code)

	rec := s.do(t, http.MethodPatch, path, customer, `{"status":"packed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPatch, path, admin, `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPatch, path, admin, `{"status":"lost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, path, admin, `{"status":"packed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPatch, path, admin, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, testutil.Stock(t, s.db, "ring"))
}

func TestAdmin_UpdatePaymentStatus(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	admin := token(t, "ops-1", middleware.RoleAdmin)

	order := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1)))).Order
	path := fmt.Sprintf("/api/admin/orders/%d/payment-status", order.ID)

	rec := s.do(t, http.MethodPatch, path, admin, `{"paymentStatus":"paid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAYMENT_STATUS", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPatch, path, admin, `{"paymentStatus":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, model.PaymentStatusCompleted, updated.PaymentStatus)
}

func webhookRequest(t *testing.T, merchantOrderID, state string) (string, string) {
	t.Helper()

	payload, err := json.Marshal(model.PhonePeCallback{
		Success: true,
		Code:    "PAYMENT_SUCCESS",
		Data: model.PhonePeCallbackData{
			MerchantID:      "M22JEWEL",
			MerchantOrderID: merchantOrderID,
			TransactionID:   "OM42",
			Amount:          9000,
			State:           state,
		},
	})
	require.NoError(t, err)

	encoded := base64.StdEncoding.EncodeToString(payload)
	sum := sha256.Sum256([]byte(encoded + phonePeSecret))
	body, err := json.Marshal(model.PhonePeWebhookEnvelope{Response: encoded})
	require.NoError(t, err)
	return string(body), hex.EncodeToString(sum[:]) + "###1"
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	placed := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("online", item("ring", 1))))
	require.NotNil(t, placed.Payment)

	body, signature := webhookRequest(t, placed.Payment.MerchantOrderID, model.PhonePeStateCompleted)

	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/phonepe/webhook", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sig != "" {
			req.Header.Set("X-VERIFY", sig)
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", decodeError(t, rec).Code)

	rec = send("deadbeef###1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var order model.Order
	require.NoError(t, s.db.First(&order, placed.Order.ID).Error)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)

	rec = send(signature)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// redelivery
	rec = send(signature)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, s.db.First(&order, placed.Order.ID).Error)
	assert.Equal(t, model.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, "OM42", order.PaymentID)
}

func TestPaymentStatusPoll(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	placed := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("online", item("ring", 2))))
	require.NotNil(t, placed.Payment)

	rec := s.do(t, http.MethodGet, "/api/payments/phonepe/status/"+placed.Payment.MerchantOrderID, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var order model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, model.PaymentStatusCompleted, order.PaymentStatus)

	rec = s.do(t, http.MethodGet, "/api/payments/phonepe/status/JWL-0-UNKNOWN0", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitiatePayment(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	testutil.CreateProduct(t, s.db, "charm", "0.50", "0", 5)

	cod := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1)))).Order
	rec := s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", "", fmt.Sprintf(`{"orderId":%d}`, cod.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PAYMENT_NOT_APPLICABLE", decodeError(t, rec).Code)

	cheap := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", "", orderBody("online", item("charm", 1))))
	require.NotNil(t, cheap.PaymentError)
	assert.Equal(t, "MINIMUM_AMOUNT_ERROR", cheap.PaymentError.Code)

	rec = s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", "", fmt.Sprintf(`{"orderId":%d}`, cheap.Order.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "MINIMUM_AMOUNT_ERROR", resp.Code)
	assert.Equal(t, "switch to cash on delivery", resp.Suggestion)

	rec = s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", "", `{"orderId":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiatePayment_OwnerOnly(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)
	asha := token(t, "user-asha", middleware.RoleCustomer)
	ravi := token(t, "user-ravi", middleware.RoleCustomer)

	placed := decodePlaced(t, s.do(t, http.MethodPost, "/api/orders", asha, orderBody("online", item("ring", 2))))
	require.NotNil(t, placed.Payment)
	body := fmt.Sprintf(`{"orderId":%d}`, placed.Order.ID)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", "", body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", ravi, body).Code)

	rec := s.do(t, http.MethodPost, "/api/payments/phonepe/initiate", asha, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var again client.PaymentOrderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, placed.Payment.MerchantOrderID, again.MerchantOrderID)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 5)

	rec := s.do(t, http.MethodGet, "/api/products/ring", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Product ring", p.Name)

	rec = s.do(t, http.MethodGet, "/api/products/ring/stock", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"ring","stock":5}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/products/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decodeError(t, rec).Code)
}

func TestCheckoutIsRateLimited(t *testing.T) {
	s := newTestServer(t, config.HTTPServer{RateLimit: 0.001, RateBurst: 2})
	testutil.CreateProduct(t, s.db, "ring", "90", "0", 50)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderBody("cod", item("ring", 1)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	// reads are not throttled
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/products/ring", "", "").Code)
}
