package repository

import (
	"context"
	"fmt"

	"github.com/yashrajoria/shopswift-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	FindAll(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	UpsertPrice(ctx context.Context, price *models.Price) error
	Delete(ctx context.Context, id uint) (int64, error)
	FindPrice(ctx context.Context, productID uint, currency string) (*models.Price, error)
	FindExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
	CountOrderReferences(ctx context.Context, productID uint) (int64, error)
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Create inserts the product, then each of its price rows.
func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(product).Error; err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	for i := range product.Prices {
		product.Prices[i].ProductID = product.ID
		if err := db.Create(&product.Prices[i]).Error; err != nil {
			return fmt.Errorf("insert %s price: %w", product.Prices[i].Currency, err)
		}
	}
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB { return db.Order("currency ASC") }).
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormProductRepository) FindAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB { return db.Order("currency ASC") }).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *GormProductRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertPrice writes the (product, currency) price, replacing the amount if
// the row already exists.
func (r *GormProductRepository) UpsertPrice(ctx context.Context, price *models.Price) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(price).Error
}

// Delete removes the product's prices and then the product. It returns the
// number of product rows deleted.
func (r *GormProductRepository) Delete(ctx context.Context, id uint) (int64, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("product_id = ?", id).Delete(&models.Price{}).Error; err != nil {
		return 0, fmt.Errorf("delete prices: %w", err)
	}
	res := db.Delete(&models.Product{}, id)
	return res.RowsAffected, res.Error
}

func (r *GormProductRepository) FindPrice(ctx context.Context, productID uint, currency string) (*models.Price, error) {
	var price models.Price
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND currency = ?", productID, currency).
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *GormProductRepository) FindExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	var found []uint
	if len(ids) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error
	return found, err
}

func (r *GormProductRepository) CountOrderReferences(ctx context.Context, productID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}
