package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/hijabworld/internal/api/middleware"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/payment"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/internal/service"
)

type stubTokens map[string]service.Claims

func (s stubTokens) ParseToken(token string) (*service.Claims, error) {
	c, ok := s[token]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	return &c, nil
}

type stubGateway struct {
	initErr error
	verify  *payment.VerifyResult
}

func (g *stubGateway) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &payment.InitializeResult{RedirectURL: "https://checkout.paystack.com/" + req.Reference, Reference: req.Reference}, nil
}

func (g *stubGateway) Verify(_ context.Context, reference string) (*payment.VerifyResult, error) {
	if g.verify != nil {
		return g.verify, nil
	}
	return &payment.VerifyResult{Succeeded: true, Reference: reference, TransactionID: "trx-1", RawStatus: "success"}, nil
}

type testServer struct {
	engine  *gin.Engine
	db      *gorm.DB
	gateway *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	gw := &stubGateway{}
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil)

	orders := service.NewOrderService(productRepo, orderRepo, gw, notifications, nil, service.OrderOptions{
		FrontendURL:          "https://shop.example.com",
		SupportEmail:         "support@hijabworld.ng",
		VerifyMaxTries:       1,
		VerifyInitialBackoff: 1,
		Tax:                  service.NoTax{},
	})
	h := New(
		orders,
		service.NewProductService(productRepo, nil),
		service.NewAuthService(userRepo, "test-secret", 0),
		notifications,
		service.NewAdminService(userRepo, productRepo, orderRepo, nil, notifications),
	)

	tokens := stubTokens{
		"buyer": {UserID: "user-1"},
		"other": {UserID: "user-2"},
		"admin": {UserID: "admin-1", IsAdmin: true},
	}
	authed := middleware.Auth(tokens)

	r := gin.New()
	r.POST("/api/orders/verify-payment", h.VerifyPayment)
	r.POST("/api/orders", authed, h.CreateOrder)
	r.GET("/api/orders/my-orders", authed, h.ListMyOrders)
	r.GET("/api/orders/:id", authed, h.GetOrder)
	r.PUT("/api/orders/:id/cancel", authed, h.CancelOrder)
	r.GET("/api/products/categories", h.ListCategories)
	r.GET("/api/products/:id", h.GetProduct)
	r.PUT("/api/admin/orders/:id", authed, middleware.Admin(), h.UpdateOrderStatus)
	r.GET("/api/admin/products", authed, middleware.Admin(), h.ListAdminProducts)

	return &testServer{engine: r, db: db, gateway: gw}
}

func (s *testServer) seedProduct(t *testing.T, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{Name: "Chiffon Hijab", Price: decimal.NewFromInt(price), Category: model.CategoryHijab, Stock: stock}
	require.NoError(t, s.db.Create(p).Error)
	return p
}

func (s *testServer) stock(t *testing.T, id string) int {
	t.Helper()
	var p model.Product
	require.NoError(t, s.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

type envelope struct {
	Code    int               `json:"code"`
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Fields  map[string]string `json:"fields"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func orderBody(productID string, qty int) gin.H {
	return gin.H{
		"items": []gin.H{{"product": productID, "quantity": qty}},
		"shippingAddress": gin.H{
			"firstName": "Aisha", "lastName": "Bello", "email": "aisha@example.com",
			"phone": "+2348012345678", "address": "12 Allen Avenue", "city": "Ikeja",
			"state": "Lagos", "zipCode": "100001",
		},
	}
}

type createdOrder struct {
	Order struct {
		ID          string `json:"id"`
		OrderNumber string `json:"orderNumber"`
		Status      string `json:"status"`
	} `json:"order"`
	PaymentLink *string `json:"paymentLink"`
	Reference   string  `json:"reference"`
}

func TestCreateOrder_Created(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)

	w, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 2))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Order created successfully. Redirecting to payment...", env.Message)
	var res createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotNil(t, res.PaymentLink)
	assert.Equal(t, "https://checkout.paystack.com/"+res.Order.OrderNumber, *res.PaymentLink)
	assert.Equal(t, res.Order.OrderNumber, res.Reference)
	assert.Equal(t, "pending", res.Order.Status)
	assert.Equal(t, 8, s.stock(t, p.ID))
}

func TestCreateOrder_GatewayDownStillCreated(t *testing.T) {
	s := newTestServer(t)
	s.gateway.initErr = errors.New("connection refused")
	p := s.seedProduct(t, 5000, 10)

	w, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 1))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Order created successfully. Please contact support for payment instructions.", env.Message)
	var res createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Nil(t, res.PaymentLink)
	assert.Equal(t, 9, s.stock(t, p.ID))
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 3)

	tests := []struct {
		name       string
		token      string
		body       interface{}
		wantStatus int
		wantKind   string
	}{
		{"no token", "", orderBody(p.ID, 1), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", "nope", orderBody(p.ID, 1), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"insufficient stock", "buyer", orderBody(p.ID, 4), http.StatusBadRequest, string(service.KindInsufficientStock)},
		{"unknown product", "buyer", orderBody("00000000-0000-0000-0000-000000000000", 1), http.StatusNotFound, string(service.KindProductNotFound)},
		{"empty cart", "buyer", gin.H{"items": []gin.H{}}, http.StatusBadRequest, string(service.KindValidation)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/orders", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantKind, env.Kind)
		})
	}
	assert.Equal(t, 3, s.stock(t, p.ID))
}

func TestCreateOrder_InsufficientStockCarriesAvailability(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 3)

	_, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 5))

	var data struct {
		Product   string `json:"product"`
		Available int    `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, p.ID, data.Product)
	assert.Equal(t, 3, data.Available)
}

func TestVerifyPayment_Flow(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)
	_, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 1))
	var created createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &created))

	w, env := s.do(t, http.MethodPost, "/api/orders/verify-payment", "", gin.H{"reference": created.Order.OrderNumber})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment verified successfully", env.Message)
	var order struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "confirmed", order.Status)

	w, env = s.do(t, http.MethodPost, "/api/orders/verify-payment", "", gin.H{"reference": "HW00000000"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(service.KindOrderNotFound), env.Kind)

	w, env = s.do(t, http.MethodPost, "/api/orders/verify-payment", "", gin.H{"reference": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(service.KindValidation), env.Kind)
}

func TestVerifyPayment_Declined(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)
	_, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 1))
	var created createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &created))

	s.gateway.verify = &payment.VerifyResult{Succeeded: false, Reference: created.Order.OrderNumber, RawStatus: "failed"}
	w, env := s.do(t, http.MethodPost, "/api/orders/verify-payment", "", gin.H{"reference": created.Order.OrderNumber})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(service.KindPaymentDeclined), env.Kind)
	var data struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "failed", data.Status)
}

func TestGetAndCancelOrder_Access(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)
	_, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 4))
	var created createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/api/orders/" + created.Order.ID

	w, _ := s.do(t, http.MethodGet, path, "buyer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, path, "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(t, http.MethodGet, path, "other", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(service.KindForbidden), env.Kind)

	w, _ = s.do(t, http.MethodPut, path+"/cancel", "other", gin.H{"reason": "not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 6, s.stock(t, p.ID))

	w, env = s.do(t, http.MethodPut, path+"/cancel", "buyer", gin.H{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code)
	var order struct {
		Status             string `json:"status"`
		CancellationReason string `json:"cancellationReason"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "cancelled", order.Status)
	assert.Equal(t, "changed my mind", order.CancellationReason)
	assert.Equal(t, 10, s.stock(t, p.ID))

	w, env = s.do(t, http.MethodPut, path+"/cancel", "buyer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(service.KindInvalidState), env.Kind)
	assert.Equal(t, 10, s.stock(t, p.ID))
}

func TestListMyOrders_Scoped(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)
	for i := 0; i < 3; i++ {
		w, _ := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 1))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, _ := s.do(t, http.MethodPost, "/api/orders", "other", orderBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/orders/my-orders?page=1&limit=2", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.OrderPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, int64(3), page.Pagination.TotalOrders)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	for _, o := range page.Orders {
		assert.Equal(t, "user-1", o.UserID)
	}
}

func TestUpdateOrderStatus_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, 5000, 10)
	_, env := s.do(t, http.MethodPost, "/api/orders", "buyer", orderBody(p.ID, 1))
	var created createdOrder
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/api/admin/orders/" + created.Order.ID

	w, env := s.do(t, http.MethodPut, path, "buyer", gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Kind)

	w, env = s.do(t, http.MethodPut, path, "admin", gin.H{"status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order status updated", env.Message)

	w, env = s.do(t, http.MethodPut, path, "admin", gin.H{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(service.KindValidation), env.Kind)
}

func TestListAdminProducts_SearchAndPaging(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"Silk Hijab", "Chiffon Hijab", "Open Abaya"} {
		p := &model.Product{Name: name, Price: decimal.NewFromInt(5000), Category: model.CategoryHijab, Stock: 3}
		require.NoError(t, s.db.Create(p).Error)
	}

	w, _ := s.do(t, http.MethodGet, "/api/admin/products", "buyer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/admin/products?search=Hijab&limit=1&page=2", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.ProductPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Products, 1)
	assert.Equal(t, int64(2), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestListCategories_Public(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(t, 5000, 10)

	w, env := s.do(t, http.MethodGet, "/api/products/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats []service.CategorySummary
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	require.Len(t, cats, 4)
	assert.Equal(t, model.CategoryHijab, cats[0].Name)
	assert.Equal(t, int64(1), cats[0].Count)
	assert.Equal(t, int64(0), cats[1].Count)
}
