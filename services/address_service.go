package services

import (
	"context"

	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/repository"
)

type AddressService interface {
	ListAddresses(ctx context.Context, userID uint) ([]models.Address, error)
	CreateAddress(ctx context.Context, userID uint, req models.CreateAddressRequest) (*models.Address, error)
}

type addressServiceImpl struct {
	store repository.Store
}

func NewAddressService(store repository.Store) AddressService {
	return &addressServiceImpl{store: store}
}

func (s *addressServiceImpl) ListAddresses(ctx context.Context, userID uint) ([]models.Address, error) {
	addresses, err := s.store.Addresses().FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list addresses", err)
	}
	if addresses == nil {
		addresses = []models.Address{}
	}
	return addresses, nil
}

// CreateAddress saves an address; a new default replaces the previous
// default of the same type.
func (s *addressServiceImpl) CreateAddress(ctx context.Context, userID uint, req models.CreateAddressRequest) (*models.Address, error) {
	if req.Type != models.AddressTypeShipping && req.Type != models.AddressTypeBilling {
		return nil, apperrors.Validation("invalid address type %q", req.Type)
	}
	addr := &models.Address{
		UserID:     userID,
		Type:       req.Type,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if addr.IsDefault {
			if err := tx.Addresses().ClearDefault(ctx, userID, addr.Type); err != nil {
				return err
			}
		}
		return tx.Addresses().Create(ctx, addr)
	})
	if err != nil {
		return nil, apperrors.Internal("Failed to save address", err)
	}
	return addr, nil
}
