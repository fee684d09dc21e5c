package models

import (
	"time"
)

// Category is the closed set of catalog categories.
type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryClothing    Category = "Clothing"
	CategoryBooks       Category = "Books"
	CategoryFurniture   Category = "Furniture"
)

// Valid reports whether c is one of the catalog categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryClothing, CategoryBooks, CategoryFurniture:
		return true
	}
	return false
}

type Product struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Category     Category  `gorm:"type:varchar(32);not null;index" json:"category"`
	BaseCurrency string    `gorm:"type:varchar(3);not null" json:"base_currency"`
	Prices       []Price   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Price is the amount of a product in one currency, in minor units.
// At most one row exists per (product, currency).
type Price struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_price_product_currency" json:"product_id"`
	Currency  string    `gorm:"type:varchar(3);not null;uniqueIndex:idx_price_product_currency" json:"currency"`
	Amount    int64     `gorm:"not null;check:amount > 0" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PriceMap returns the product's prices keyed by currency code.
func (p *Product) PriceMap() map[string]int64 {
	m := make(map[string]int64, len(p.Prices))
	for _, price := range p.Prices {
		m[price.Currency] = price.Amount
	}
	return m
}

// ProductResponse is the API view of a product with its price in every
// stored currency (minor units).
type ProductResponse struct {
	ID           uint             `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Category     Category         `json:"category"`
	BaseCurrency string           `json:"base_currency"`
	Prices       map[string]int64 `json:"prices"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func NewProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		BaseCurrency: p.BaseCurrency,
		Prices:       p.PriceMap(),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Description string   `json:"description"`
	Category    Category `json:"category" binding:"required,oneof=Electronics Clothing Books Furniture"`
	Amount      int64    `json:"amount" binding:"required,gt=0"`
	Currency    string   `json:"currency" binding:"required,oneof=inr usd"`
}

// UpdateProductRequest carries only the fields to change. Rederive
// recomputes the prices in the other currencies from the new amount.
type UpdateProductRequest struct {
	Name        *string   `json:"name" binding:"omitempty,max=255"`
	Description *string   `json:"description"`
	Category    *Category `json:"category" binding:"omitempty,oneof=Electronics Clothing Books Furniture"`
	Amount      *int64    `json:"amount" binding:"omitempty,gt=0"`
	Currency    *string   `json:"currency" binding:"omitempty,oneof=inr usd"`
	Rederive    bool      `json:"rederive"`
}
