package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/middleware"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/services"
)

const maxWebhookBody = 1 << 20

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(svc services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: svc}
}

// CreateCheckout handles POST /payments/checkout
func (pc *PaymentController) CreateCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	checkout, err := pc.paymentService.CreateCheckout(c.Request.Context(), middleware.GetUserID(c), req.OrderID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// VerifyRazorpay handles POST /payments/razorpay/verify
func (pc *PaymentController) VerifyRazorpay(c *gin.Context) {
	var req models.RazorpayVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := pc.paymentService.VerifyRazorpayPayment(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// RazorpayWebhook handles POST /webhooks/razorpay
func (pc *PaymentController) RazorpayWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	if err := pc.paymentService.HandleRazorpayWebhook(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// PolarWebhook handles POST /webhooks/polar
func (pc *PaymentController) PolarWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}
	if err := pc.paymentService.HandlePolarWebhook(c.Request.Context(), body, c.Request.Header); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// readWebhookBody keeps the raw bytes; signatures are computed over them.
func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		_ = c.Error(apperrors.Validation("unable to read request body"))
		return nil, false
	}
	return body, true
}
