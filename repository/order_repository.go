package repository

import (
	"context"
	"fmt"

	"github.com/yashrajoria/shopswift-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindByIDAndUserID(ctx context.Context, id, userID uint) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id, userID uint) (*models.Order, error)
	LockByID(ctx context.Context, id uint) (*models.Order, error)
	HasOpenPayment(ctx context.Context, orderID uint) (bool, error)
	FindAll(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	CreateItem(ctx context.Context, item *models.OrderItem) error
	UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) error
	DeleteItem(ctx context.Context, itemID uint) error
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order row, then each line item in turn. Callers run it
// inside a transaction so a failing item leaves nothing behind.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := db.Omit(clause.Associations).Create(&order.Items[i]).Error; err != nil {
			return fmt.Errorf("insert order item %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *GormOrderRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("ShippingAddress").
		Preload("BillingAddress")
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(r.db.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, id, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.withDetails(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row for the rest of the transaction so
// concurrent item changes serialize on it.
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id, userID uint) (*models.Order, error) {
	return r.lock(ctx, "id = ? AND user_id = ?", id, userID)
}

// LockByID is FindByIDForUpdate without the owner scope, for admin paths.
func (r *GormOrderRepository) LockByID(ctx context.Context, id uint) (*models.Order, error) {
	return r.lock(ctx, "id = ?", id)
}

func (r *GormOrderRepository) lock(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, args...).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// HasOpenPayment reports whether the order has a pending or succeeded
// payment. Such an order's items and total are frozen.
func (r *GormOrderRepository) HasOpenPayment(ctx context.Context, orderID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status <> ?", orderID, models.PaymentStatusFailed).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindAll returns one page of orders matching every set filter, newest
// first, and the total number of matches.
func (r *GormOrderRepository) FindAll(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.UserID != nil {
			db = db.Where("user_id = ?", *filter.UserID)
		}
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormOrderRepository) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *GormOrderRepository) UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) error {
	return r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("id = ?", itemID).Update("quantity", quantity).Error
}

func (r *GormOrderRepository) DeleteItem(ctx context.Context, itemID uint) error {
	return r.db.WithContext(ctx).Delete(&models.OrderItem{}, itemID).Error
}
