package controllers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/middleware"
	"github.com/yashrajoria/shopswift-api/models"
	"go.uber.org/zap"
)

const testUserID uint = 7

// newRouter installs the error renderer and a fixed authenticated caller.
func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(zap.NewNop()))
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserKey, testUserID)
		c.Set(middleware.RoleKey, models.RoleUser)
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- order service ----

type mockOrderSvc struct {
	result *models.OrderResult
	list   *models.OrderList
	err    error

	gotUserID    uint
	gotOrderID   uint
	gotProductID uint
	gotQuantity  int
	gotCreate    models.CreateOrderInput
	gotFilter    models.OrderFilter
	gotStatus    string
}

func (m *mockOrderSvc) CreateOrder(_ context.Context, userID uint, input models.CreateOrderInput) (*models.OrderResult, error) {
	m.gotUserID, m.gotCreate = userID, input
	return m.result, m.err
}

func (m *mockOrderSvc) GetOrderByID(_ context.Context, orderID, userID uint) (*models.OrderResult, error) {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.result, m.err
}

func (m *mockOrderSvc) UpdateOrder(_ context.Context, orderID, userID uint, _ models.UpdateOrderInput) (*models.OrderResult, error) {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.result, m.err
}

func (m *mockOrderSvc) UpdateOrderStatus(_ context.Context, orderID uint, status string) (*models.OrderResult, error) {
	m.gotOrderID, m.gotStatus = orderID, status
	return m.result, m.err
}

func (m *mockOrderSvc) AddProductToOrder(_ context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error) {
	m.gotOrderID, m.gotUserID, m.gotProductID, m.gotQuantity = orderID, userID, productID, quantity
	return m.result, m.err
}

func (m *mockOrderSvc) RemoveProductFromOrder(_ context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error) {
	m.gotOrderID, m.gotUserID, m.gotProductID, m.gotQuantity = orderID, userID, productID, quantity
	return m.result, m.err
}

func (m *mockOrderSvc) GetAllOrders(_ context.Context, filter models.OrderFilter) (*models.OrderList, error) {
	m.gotFilter = filter
	return m.list, m.err
}

// ---- product service ----

type mockProductSvc struct {
	product  *models.ProductResponse
	products []models.ProductResponse
	err      error
	deleted  uint
}

func (m *mockProductSvc) CreateProduct(context.Context, models.CreateProductRequest) (*models.ProductResponse, error) {
	return m.product, m.err
}

func (m *mockProductSvc) GetProductByID(context.Context, uint) (*models.ProductResponse, error) {
	return m.product, m.err
}

func (m *mockProductSvc) GetProducts(context.Context) ([]models.ProductResponse, error) {
	return m.products, m.err
}

func (m *mockProductSvc) UpdateProduct(context.Context, uint, models.UpdateProductRequest) (*models.ProductResponse, error) {
	return m.product, m.err
}

func (m *mockProductSvc) DeleteProduct(_ context.Context, id uint) error {
	m.deleted = id
	return m.err
}

func (m *mockProductSvc) GetProductPrice(context.Context, uint, string) (int64, error) {
	return 0, m.err
}

// ---- currency service ----

type mockCurrencySvc struct {
	rate    decimal.Decimal
	result  *models.ConversionResult
	err     error
	cleared bool
}

func (m *mockCurrencySvc) GetExchangeRate(context.Context, string, string) (decimal.Decimal, error) {
	return m.rate, m.err
}

func (m *mockCurrencySvc) ConvertCurrency(context.Context, decimal.Decimal, string, string) (*models.ConversionResult, error) {
	return m.result, m.err
}

func (m *mockCurrencySvc) SetExchangeRate(string, string, decimal.Decimal) error { return m.err }

func (m *mockCurrencySvc) ClearCache() { m.cleared = true }

func (m *mockCurrencySvc) CurrencyForPaymentMethod(string) (string, error) { return "", m.err }

func (m *mockCurrencySvc) PaymentMethodForCurrency(string) (string, error) { return "", m.err }

// ---- payment service ----

type mockPaymentSvc struct {
	checkout  *models.CheckoutResponse
	payment   *models.Payment
	err       error
	body      []byte
	signature string
	headers   http.Header
}

func (m *mockPaymentSvc) CreateCheckout(context.Context, uint, uint) (*models.CheckoutResponse, error) {
	return m.checkout, m.err
}

func (m *mockPaymentSvc) VerifyRazorpayPayment(context.Context, uint, models.RazorpayVerifyRequest) (*models.Payment, error) {
	return m.payment, m.err
}

func (m *mockPaymentSvc) HandleRazorpayWebhook(_ context.Context, body []byte, signature string) error {
	m.body, m.signature = body, signature
	return m.err
}

func (m *mockPaymentSvc) HandlePolarWebhook(_ context.Context, body []byte, headers http.Header) error {
	m.body, m.headers = body, headers
	return m.err
}

// ---- auth service ----

type mockAuthSvc struct {
	resp       *models.AuthResponse
	resetToken string
	err        error
}

func (m *mockAuthSvc) Register(context.Context, models.RegisterRequest) (*models.AuthResponse, error) {
	return m.resp, m.err
}

func (m *mockAuthSvc) Login(context.Context, models.LoginRequest) (*models.AuthResponse, error) {
	return m.resp, m.err
}

func (m *mockAuthSvc) ForgotPassword(context.Context, string) (string, error) {
	return m.resetToken, m.err
}

func (m *mockAuthSvc) ResetPassword(context.Context, string, string) error { return m.err }
