package repository

import (
	"context"

	"github.com/yashrajoria/shopswift-api/models"
	"gorm.io/gorm"
)

type AddressRepository interface {
	Create(ctx context.Context, address *models.Address) error
	FindByIDAndUserID(ctx context.Context, id, userID uint) (*models.Address, error)
	FindDefault(ctx context.Context, userID uint, addressType string) (*models.Address, error)
	FindByUserID(ctx context.Context, userID uint) ([]models.Address, error)
	ClearDefault(ctx context.Context, userID uint, addressType string) error
}

type GormAddressRepository struct {
	db *gorm.DB
}

func NewGormAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

func (r *GormAddressRepository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

func (r *GormAddressRepository) FindByIDAndUserID(ctx context.Context, id, userID uint) (*models.Address, error) {
	var address models.Address
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&address).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *GormAddressRepository) FindDefault(ctx context.Context, userID uint, addressType string) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_default = ?", userID, addressType, true).
		Order("id DESC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *GormAddressRepository) FindByUserID(ctx context.Context, userID uint) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&addresses).Error
	return addresses, err
}

func (r *GormAddressRepository) ClearDefault(ctx context.Context, userID uint, addressType string) error {
	return r.db.WithContext(ctx).Model(&models.Address{}).
		Where("user_id = ? AND type = ? AND is_default = ?", userID, addressType, true).
		Update("is_default", false).Error
}
