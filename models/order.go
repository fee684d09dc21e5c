package models

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus values. Delivered and cancelled are terminal.
const (
	OrderStatusProcessing = "processing"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodPolar    = "polar"
)

// Address types.
const (
	AddressTypeShipping = "shipping"
	AddressTypeBilling  = "billing"
)

// MaxItemQuantity caps the quantity of a single order line.
const MaxItemQuantity = 10000

// ErrAmountOverflow is returned when a total no longer fits in int64 minor units.
var ErrAmountOverflow = errors.New("amount exceeds the supported range")

// IsTerminalStatus reports whether no further order mutation is allowed.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

type Address struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Type       string    `gorm:"type:varchar(16);not null" json:"type"`
	Street     string    `gorm:"type:varchar(255);not null" json:"street"`
	City       string    `gorm:"type:varchar(100);not null" json:"city"`
	State      string    `gorm:"type:varchar(100)" json:"state"`
	PostalCode string    `gorm:"type:varchar(20);not null" json:"postal_code"`
	Country    string    `gorm:"type:varchar(100);not null" json:"country"`
	IsDefault  bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	TotalAmount       int64           `gorm:"not null" json:"total_amount"`
	Currency          string          `gorm:"column:total_amount_currency;type:varchar(3);not null" json:"currency"`
	ReferenceAmount   int64           `gorm:"not null;default:0" json:"reference_amount"`
	ExchangeRate      decimal.Decimal `gorm:"type:numeric(18,8);not null;default:1" json:"exchange_rate"`
	Status            string          `gorm:"type:varchar(20);not null;index;default:'processing'" json:"status"`
	PaymentMethod     string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	ShippingAddressID uint            `gorm:"not null" json:"shipping_address_id"`
	BillingAddressID  uint            `gorm:"not null" json:"billing_address_id"`
	ShippingAddress   *Address        `gorm:"foreignKey:ShippingAddressID" json:"-"`
	BillingAddress    *Address        `gorm:"foreignKey:BillingAddressID" json:"-"`
	Notes             string          `gorm:"type:text" json:"notes"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem freezes the unit price at the moment the product was ordered.
type OrderItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      uint      `gorm:"not null;index" json:"order_id"`
	ProductID    uint      `gorm:"not null;index" json:"product_id"`
	Product      *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"-"`
	Quantity     int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	PriceAtOrder int64     `gorm:"not null" json:"price_at_order"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LineTotal returns price × quantity, or ErrAmountOverflow.
func LineTotal(price int64, quantity int) (int64, error) {
	if price < 0 || quantity < 0 {
		return 0, ErrAmountOverflow
	}
	if quantity > 0 && price > math.MaxInt64/int64(quantity) {
		return 0, ErrAmountOverflow
	}
	return price * int64(quantity), nil
}

// AddAmounts returns a + b for non-negative amounts, or ErrAmountOverflow.
func AddAmounts(a, b int64) (int64, error) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// ItemsTotal sums price × quantity over the order's current items.
func (o *Order) ItemsTotal() (int64, error) {
	var total int64
	for _, item := range o.Items {
		sub, err := LineTotal(item.PriceAtOrder, item.Quantity)
		if err != nil {
			return 0, err
		}
		if total, err = AddAmounts(total, sub); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// OrderFilter narrows GetAllOrders. Nil fields are not applied.
type OrderFilter struct {
	UserID *uint
	Status *string
	Limit  int
	Offset int
}

type AddressInput struct {
	ID         *uint  `json:"id"`
	UseDefault bool   `json:"use_default"`
	Street     string `json:"street" validate:"max=255"`
	City       string `json:"city" validate:"max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"max=100"`
	SetDefault bool   `json:"set_default"`
}

type OrderProductInput struct {
	ProductID uint `json:"product_id" validate:"gt=0"`
	Quantity  int  `json:"quantity" validate:"gt=0,lte=10000"`
}

type CreateOrderInput struct {
	PaymentMethod   string              `json:"payment_method" validate:"required,oneof=razorpay polar"`
	ShippingAddress *AddressInput       `json:"shipping_address" validate:"required"`
	BillingAddress  *AddressInput       `json:"billing_address"`
	Products        []OrderProductInput `json:"products" validate:"required,min=1,dive"`
	Notes           string              `json:"notes" validate:"max=2000"`
}

type UpdateOrderInput struct {
	Status            *string `json:"status" validate:"omitempty,oneof=processing delivered cancelled"`
	Notes             *string `json:"notes" validate:"omitempty,max=2000"`
	ShippingAddressID *uint   `json:"shipping_address_id" validate:"omitempty,gt=0"`
	BillingAddressID  *uint   `json:"billing_address_id" validate:"omitempty,gt=0"`
}

// UpdateOrderStatusInput is the admin status change body.
type UpdateOrderStatusInput struct {
	Status string `json:"status" validate:"required,oneof=processing delivered cancelled"`
}

type AddOrderItemInput struct {
	ProductID uint `json:"product_id" validate:"gt=0"`
	Quantity  int  `json:"quantity" validate:"gt=0,lte=10000"`
}

type OrderItemResponse struct {
	ID           uint            `json:"id"`
	ProductID    uint            `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// PricingSummary reports the order total in the reference currency and in
// the order currency together with the rate that links them.
type PricingSummary struct {
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency string          `json:"original_currency"`
	ConvertedAmount  decimal.Decimal `json:"converted_amount"`
	Currency         string          `json:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	TotalAmountMinor int64           `json:"total_amount_minor"`
}

type OrderResult struct {
	ID              uint                `json:"id"`
	UserID          uint                `json:"user_id"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	Notes           string              `json:"notes"`
	ShippingAddress *Address            `json:"shipping_address"`
	BillingAddress  *Address            `json:"billing_address"`
	Items           []OrderItemResponse `json:"items"`
	Pricing         PricingSummary      `json:"pricing"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderList is one page of orders plus the unpaged total.
type OrderList struct {
	Orders []Order `json:"orders"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
