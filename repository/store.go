package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in catalog and order
// transactions. Repositories obtained from the tx argument of Transaction
// share one database transaction.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	Addresses() AddressRepository
	// Transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Products() ProductRepository  { return NewGormProductRepository(s.db) }
func (s *GormStore) Orders() OrderRepository      { return NewGormOrderRepository(s.db) }
func (s *GormStore) Addresses() AddressRepository { return NewGormAddressRepository(s.db) }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
