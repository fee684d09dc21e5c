package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/yashrajoria/shopswift-api/models"
)

var (
	// ErrInvalidSignature is returned when a callback or webhook signature
	// does not match the configured secret.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNotConfigured is returned when a provider is used without credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// CheckoutParams describes the payment a provider is asked to collect.
type CheckoutParams struct {
	PaymentID     string
	OrderID       uint
	UserID        uint
	Amount        int64
	Currency      string
	CustomerEmail string
}

// Checkout is the provider's handle on a created payment.
type Checkout struct {
	ProviderRef string
	CheckoutURL string
	KeyID       string
}

// PaymentProvider is implemented by every payment processor client.
type PaymentProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)
	// ParseWebhook verifies the request signature and decodes the payload.
	ParseWebhook(body []byte, headers http.Header) (*models.WebhookEvent, error)
}

// APIError carries a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return e.Provider + " api returned " + http.StatusText(e.StatusCode) + ": " + e.Body
}

func hmacSHA256Hex(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
