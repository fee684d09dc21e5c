package controllers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/controllers"
	"github.com/yashrajoria/shopswift-api/models"
)

func setupProductRouter(svc *mockProductSvc) *gin.Engine {
	r := newRouter()
	pc := controllers.NewProductController(svc)
	r.POST("/products", pc.CreateProduct)
	r.GET("/products", pc.GetProducts)
	r.GET("/products/:id", pc.GetProduct)
	r.PATCH("/products/:id", pc.UpdateProduct)
	r.DELETE("/products/:id", pc.DeleteProduct)
	return r
}

func TestCreateProduct(t *testing.T) {
	svc := &mockProductSvc{product: &models.ProductResponse{
		ID:     1,
		Name:   "Desk Lamp",
		Prices: map[string]int64{"usd": 1999, "inr": 166417},
	}}
	r := setupProductRouter(svc)

	w := doJSON(r, http.MethodPost, "/products",
		`{"name":"Desk Lamp","category":"Furniture","amount":1999,"currency":"usd"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"prices":{"inr":166417,"usd":1999}`)
}

func TestCreateProduct_BindingRejects(t *testing.T) {
	r := setupProductRouter(&mockProductSvc{})

	bodies := []string{
		`{"category":"Furniture","amount":1999,"currency":"usd"}`,
		`{"name":"Lamp","category":"Toys","amount":1999,"currency":"usd"}`,
		`{"name":"Lamp","category":"Furniture","amount":-5,"currency":"usd"}`,
		`{"name":"Lamp","category":"Furniture","amount":1999,"currency":"eur"}`,
	}
	for _, b := range bodies {
		w := doJSON(r, http.MethodPost, "/products", b)
		assert.Equal(t, http.StatusBadRequest, w.Code, b)
	}
}

func TestGetProducts(t *testing.T) {
	svc := &mockProductSvc{products: []models.ProductResponse{{ID: 1}, {ID: 2}}}
	r := setupProductRouter(svc)

	w := doJSON(r, http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"products":[`)
}

func TestGetProduct_NotFound(t *testing.T) {
	r := setupProductRouter(&mockProductSvc{err: apperrors.NotFound("product 5 not found")})

	w := doJSON(r, http.MethodGet, "/products/5", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":"NOT_FOUND","error":"product 5 not found"}`, w.Body.String())
}

func TestUpdateProduct(t *testing.T) {
	svc := &mockProductSvc{product: &models.ProductResponse{ID: 5, Name: "Renamed"}}
	r := setupProductRouter(svc)

	w := doJSON(r, http.MethodPatch, "/products/5", `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPatch, "/products/5", `{"currency":"gbp"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	svc := &mockProductSvc{}
	r := setupProductRouter(svc)

	w := doJSON(r, http.MethodDelete, "/products/5", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, uint(5), svc.deleted)

	svc.err = apperrors.Conflict("product 5 is referenced by existing orders")
	w = doJSON(r, http.MethodDelete, "/products/5", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func setupCurrencyRouter(svc *mockCurrencySvc) *gin.Engine {
	r := newRouter()
	cc := controllers.NewCurrencyController(svc)
	r.GET("/currency/rate", cc.GetRate)
	r.POST("/currency/convert", cc.Convert)
	r.PUT("/currency/rate", cc.SetRate)
	r.DELETE("/currency/cache", cc.ClearCache)
	return r
}

func TestCurrencyController(t *testing.T) {
	svc := &mockCurrencySvc{
		rate: decimal.RequireFromString("83.25"),
		result: &models.ConversionResult{
			OriginalAmount:  decimal.NewFromInt(10),
			ConvertedAmount: decimal.RequireFromString("832.5"),
			FromCurrency:    "usd",
			ToCurrency:      "inr",
			ExchangeRate:    decimal.RequireFromString("83.25"),
		},
	}
	r := setupCurrencyRouter(svc)

	w := doJSON(r, http.MethodGet, "/currency/rate?from=usd&to=inr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"from":"usd","to":"inr","rate":"83.25"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/currency/convert", `{"amount":10,"from":"usd","to":"inr"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"converted_amount":"832.5"`)

	w = doJSON(r, http.MethodPut, "/currency/rate", `{"from":"usd","to":"inr","rate":"84"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, "/currency/cache", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.cleared)
}

func TestCurrencyController_Unavailable(t *testing.T) {
	r := setupCurrencyRouter(&mockCurrencySvc{err: apperrors.ExternalService("exchange rate usd->inr unavailable", nil)})

	w := doJSON(r, http.MethodGet, "/currency/rate?from=usd&to=inr", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"EXTERNAL_SERVICE_ERROR"`)
}
