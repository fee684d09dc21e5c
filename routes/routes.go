package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	commonmw "github.com/yashrajoria/shopswift-api/common/middleware"
	"github.com/yashrajoria/shopswift-api/controllers"
	"github.com/yashrajoria/shopswift-api/middleware"
	"github.com/yashrajoria/shopswift-api/models"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Product  *controllers.ProductController
	Order    *controllers.OrderController
	Currency *controllers.CurrencyController
	Auth     *controllers.AuthController
	Address  *controllers.AddressController
	Payment  *controllers.PaymentController
}

// RegisterRoutes sets up the public API. authLimiter throttles the
// credential endpoints per client IP.
func RegisterRoutes(r *gin.Engine, h Controllers, tokens middleware.TokenValidator, authLimiter *commonmw.RateLimiter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	authed := middleware.AuthMiddleware(tokens)
	admin := middleware.RequireRole(models.RoleAdmin)

	auth := r.Group("/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)
	}

	products := r.Group("/products")
	{
		products.GET("", h.Product.GetProducts)
		products.GET("/:id", h.Product.GetProduct)
		products.POST("", authed, admin, h.Product.CreateProduct)
		products.PATCH("/:id", authed, admin, h.Product.UpdateProduct)
		products.DELETE("/:id", authed, admin, h.Product.DeleteProduct)
	}

	currency := r.Group("/currency")
	{
		currency.GET("/rate", h.Currency.GetRate)
		currency.POST("/convert", h.Currency.Convert)
		currency.PUT("/rate", authed, admin, h.Currency.SetRate)
		currency.DELETE("/cache", authed, admin, h.Currency.ClearCache)
	}

	orders := r.Group("/orders")
	orders.Use(authed)
	{
		orders.POST("", h.Order.CreateOrder)
		orders.GET("", h.Order.GetOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.PATCH("/:id", h.Order.UpdateOrder)
		orders.POST("/:id/items", h.Order.AddItem)
		orders.DELETE("/:id/items/:productId", h.Order.RemoveItem)
	}

	r.GET("/admin/orders", authed, admin, h.Order.ListAllOrders)
	r.PATCH("/admin/orders/:id/status", authed, admin, h.Order.UpdateOrderStatus)

	addresses := r.Group("/addresses")
	addresses.Use(authed)
	{
		addresses.GET("", h.Address.ListAddresses)
		addresses.POST("", h.Address.CreateAddress)
	}

	payments := r.Group("/payments")
	payments.Use(authed)
	{
		payments.POST("/checkout", h.Payment.CreateCheckout)
		payments.POST("/razorpay/verify", h.Payment.VerifyRazorpay)
	}

	// Providers authenticate webhooks by signature, not bearer token.
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/razorpay", h.Payment.RazorpayWebhook)
		webhooks.POST("/polar", h.Payment.PolarWebhook)
	}
}
