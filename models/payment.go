package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Payment statuses. Succeeded and failed are terminal.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// IsTerminalPaymentStatus reports whether webhook updates must be ignored.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentStatusSucceeded || status == PaymentStatusFailed
}

type Payment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID           uint       `gorm:"not null;index" json:"order_id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	Provider          string     `gorm:"type:varchar(20);not null" json:"provider"`
	Amount            int64      `gorm:"not null" json:"amount"`
	Currency          string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status            string     `gorm:"type:varchar(20);not null;index" json:"status"`
	ProviderRef       *string    `gorm:"type:varchar(255);uniqueIndex" json:"provider_ref,omitempty"`
	ProviderPaymentID *string    `gorm:"type:varchar(255)" json:"provider_payment_id,omitempty"`
	CheckoutURL       *string    `gorm:"type:varchar(1024)" json:"checkout_url,omitempty"`
	FailureReason     string     `gorm:"type:text" json:"failure_reason,omitempty"`
	EventPayload      *string    `gorm:"type:jsonb" json:"-"`
	SucceededAt       *time.Time `json:"succeeded_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type CheckoutRequest struct {
	OrderID uint `json:"order_id" binding:"required,gt=0"`
}

// CheckoutResponse tells the client how to complete payment: Razorpay
// checkouts are opened client side with the provider order id and key,
// Polar checkouts by redirecting to CheckoutURL.
type CheckoutResponse struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
	KeyID       string    `json:"key_id,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
}

type RazorpayVerifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// PaymentEvent is published whenever a payment reaches a terminal status.
type PaymentEvent struct {
	EventType string    `json:"event_type"`
	PaymentID string    `json:"payment_id"`
	OrderID   uint      `json:"order_id"`
	UserID    uint      `json:"user_id"`
	Provider  string    `json:"provider"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published when an order is created or changes status.
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     uint      `json:"order_id"`
	UserID      uint      `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// WebhookEventKind discriminates provider webhook payloads.
type WebhookEventKind int

const (
	WebhookIgnored WebhookEventKind = iota
	WebhookPaymentSucceeded
	WebhookPaymentFailed
)

// WebhookEvent is the provider-neutral result of decoding a verified
// webhook. ProviderRef matches Payment.ProviderRef.
type WebhookEvent struct {
	Kind              WebhookEventKind
	Type              string
	ProviderRef       string
	ProviderPaymentID string
	FailureReason     string
	Raw               json.RawMessage
}
