package providers

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yashrajoria/shopswift-api/models"
)

const RazorpayName = models.PaymentMethodRazorpay

// RazorpayClient creates Razorpay orders and checks callback signatures.
// The browser completes payment with Razorpay Checkout using the returned
// order id and key id.
type RazorpayClient struct {
	client        *resty.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func NewRazorpayClient(baseURL, keyID, keySecret, webhookSecret string, timeout time.Duration) *RazorpayClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Content-Type", "application/json")
	return &RazorpayClient{client: client, keyID: keyID, keySecret: keySecret, webhookSecret: webhookSecret}
}

func (c *RazorpayClient) Name() string { return RazorpayName }

// KeyID is the public key the browser checkout is opened with.
func (c *RazorpayClient) KeyID() string { return c.keyID }

// CreateCheckout creates a Razorpay order for the payment amount.
func (c *RazorpayClient) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, fmt.Errorf("razorpay: %w", ErrNotConfigured)
	}

	body := map[string]interface{}{
		"amount":   params.Amount,
		"currency": strings.ToUpper(params.Currency),
		"receipt":  "order_" + strconv.FormatUint(uint64(params.OrderID), 10),
		"notes": map[string]string{
			"order_id":   strconv.FormatUint(uint64(params.OrderID), 10),
			"user_id":    strconv.FormatUint(uint64(params.UserID), 10),
			"payment_id": params.PaymentID,
		},
	}

	var out razorpayOrder
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("razorpay create order failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: RazorpayName, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}
	if out.ID == "" {
		return nil, fmt.Errorf("razorpay create order returned no id")
	}
	return &Checkout{ProviderRef: out.ID, KeyID: c.keyID}, nil
}

// VerifyPaymentSignature checks the signature Razorpay Checkout hands the
// browser after a successful payment: HMAC-SHA256 of "order_id|payment_id"
// keyed with the API secret.
func (c *RazorpayClient) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	expected := hmacSHA256Hex([]byte(c.keySecret), []byte(orderID+"|"+paymentID))
	if c.keySecret == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Razorpay webhook payloads, discriminated by the event field.
type razorpayEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type razorpayPaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type razorpayPaymentPayload struct {
	Payment struct {
		Entity razorpayPaymentEntity `json:"entity"`
	} `json:"payment"`
}

type razorpayOrderPaidPayload struct {
	Payment struct {
		Entity razorpayPaymentEntity `json:"entity"`
	} `json:"payment"`
	Order struct {
		Entity razorpayOrder `json:"entity"`
	} `json:"order"`
}

// ParseWebhook verifies X-Razorpay-Signature (hex HMAC-SHA256 of the raw
// body keyed with the webhook secret) and decodes the event.
func (c *RazorpayClient) ParseWebhook(body []byte, headers http.Header) (*models.WebhookEvent, error) {
	signature := headers.Get("X-Razorpay-Signature")
	expected := hmacSHA256Hex([]byte(c.webhookSecret), body)
	if c.webhookSecret == "" || signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var env razorpayEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode razorpay webhook: %w", err)
	}

	event := &models.WebhookEvent{Type: env.Event, Raw: json.RawMessage(body)}
	switch env.Event {
	case "payment.captured", "payment.failed":
		var p razorpayPaymentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		event.ProviderRef = p.Payment.Entity.OrderID
		event.ProviderPaymentID = p.Payment.Entity.ID
		if env.Event == "payment.captured" {
			event.Kind = models.WebhookPaymentSucceeded
		} else {
			event.Kind = models.WebhookPaymentFailed
			event.FailureReason = p.Payment.Entity.ErrorDescription
		}
	case "order.paid":
		var p razorpayOrderPaidPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode order.paid payload: %w", err)
		}
		event.Kind = models.WebhookPaymentSucceeded
		event.ProviderRef = p.Order.Entity.ID
		event.ProviderPaymentID = p.Payment.Entity.ID
	default:
		event.Kind = models.WebhookIgnored
	}

	if event.Kind != models.WebhookIgnored && event.ProviderRef == "" {
		return nil, fmt.Errorf("razorpay %s webhook has no order id", env.Event)
	}
	return event, nil
}
