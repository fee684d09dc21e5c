package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yashrajoria/shopswift-api/models"
)

const (
	PolarName = models.PaymentMethodPolar

	polarWebhookTolerance = 5 * time.Minute
)

// PolarClient creates hosted Polar checkouts and verifies Polar webhooks,
// which follow the Standard Webhooks signing scheme.
type PolarClient struct {
	client        *resty.Client
	accessToken   string
	productID     string
	successURL    string
	webhookSecret string
	now           func() time.Time
}

type polarCheckout struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

func NewPolarClient(baseURL, accessToken, productID, successURL, webhookSecret string, timeout time.Duration) *PolarClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json")
	return &PolarClient{
		client:        client,
		accessToken:   accessToken,
		productID:     productID,
		successURL:    successURL,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

func (c *PolarClient) Name() string { return PolarName }

// CreateCheckout opens a checkout session priced at the order total.
func (c *PolarClient) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	if c.accessToken == "" || c.productID == "" {
		return nil, fmt.Errorf("polar: %w", ErrNotConfigured)
	}

	body := map[string]interface{}{
		"products":    []string{c.productID},
		"amount":      params.Amount,
		"success_url": c.successURL,
		"metadata": map[string]string{
			"order_id":   strconv.FormatUint(uint64(params.OrderID), 10),
			"user_id":    strconv.FormatUint(uint64(params.UserID), 10),
			"payment_id": params.PaymentID,
		},
	}
	if params.CustomerEmail != "" {
		body["customer_email"] = params.CustomerEmail
	}

	var out polarCheckout
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/checkouts/")
	if err != nil {
		return nil, fmt.Errorf("polar create checkout failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: PolarName, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("polar create checkout returned no id or url")
	}
	return &Checkout{ProviderRef: out.ID, CheckoutURL: out.URL}, nil
}

type polarEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type polarCheckoutData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type polarOrderData struct {
	ID         string `json:"id"`
	CheckoutID string `json:"checkout_id"`
}

// ParseWebhook verifies the webhook-id, webhook-timestamp and
// webhook-signature headers and decodes checkout and order events.
func (c *PolarClient) ParseWebhook(body []byte, headers http.Header) (*models.WebhookEvent, error) {
	if err := c.verify(body, headers); err != nil {
		return nil, err
	}

	var env polarEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode polar webhook: %w", err)
	}

	event := &models.WebhookEvent{Type: env.Type, Kind: models.WebhookIgnored, Raw: json.RawMessage(body)}
	switch env.Type {
	case "checkout.updated":
		var d polarCheckoutData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode checkout.updated data: %w", err)
		}
		event.ProviderRef = d.ID
		switch d.Status {
		case "succeeded":
			event.Kind = models.WebhookPaymentSucceeded
		case "failed", "expired":
			event.Kind = models.WebhookPaymentFailed
			event.FailureReason = "checkout " + d.Status
		}
	case "order.paid":
		var d polarOrderData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode order.paid data: %w", err)
		}
		event.Kind = models.WebhookPaymentSucceeded
		event.ProviderRef = d.CheckoutID
		event.ProviderPaymentID = d.ID
	}

	if event.Kind != models.WebhookIgnored && event.ProviderRef == "" {
		return nil, fmt.Errorf("polar %s webhook has no checkout id", env.Type)
	}
	return event, nil
}

func (c *PolarClient) verify(body []byte, headers http.Header) error {
	id := headers.Get("webhook-id")
	ts := headers.Get("webhook-timestamp")
	sigHeader := headers.Get("webhook-signature")
	if c.webhookSecret == "" || id == "" || ts == "" || sigHeader == "" {
		return ErrInvalidSignature
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	sent := time.Unix(sec, 0)
	if d := c.now().Sub(sent); d > polarWebhookTolerance || d < -polarWebhookTolerance {
		return ErrInvalidSignature
	}

	expected := polarSign([]byte(c.webhookSecret), id, ts, body)
	// The header may carry several space separated "v1,<sig>" entries during
	// secret rotation.
	for _, part := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func polarSign(secret []byte, id, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
