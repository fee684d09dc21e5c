package services

import (
	"context"
	"strings"

	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"github.com/yashrajoria/shopswift-api/repository"
	"go.uber.org/zap"
)

// ProductService manages the catalog and the per-currency prices.
type ProductService interface {
	CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.ProductResponse, error)
	GetProductByID(ctx context.Context, id uint) (*models.ProductResponse, error)
	GetProducts(ctx context.Context) ([]models.ProductResponse, error)
	UpdateProduct(ctx context.Context, id uint, req models.UpdateProductRequest) (*models.ProductResponse, error)
	DeleteProduct(ctx context.Context, id uint) error
	GetProductPrice(ctx context.Context, productID uint, currency string) (int64, error)
}

type productServiceImpl struct {
	store    repository.Store
	currency CurrencyService
	metrics  MetricCounter
	logger   *zap.Logger
}

func NewProductService(store repository.Store, currency CurrencyService, metrics MetricCounter, logger *zap.Logger) ProductService {
	return &productServiceImpl{
		store:    store,
		currency: currency,
		metrics:  metrics,
		logger:   logger,
	}
}

// derivePrices converts amount (minor units of base) into every other
// supported currency.
func (s *productServiceImpl) derivePrices(ctx context.Context, amount int64, base string) ([]models.Price, error) {
	var prices []models.Price
	for _, cur := range models.SupportedCurrencies {
		if cur == base {
			continue
		}
		res, err := s.currency.ConvertCurrency(ctx, models.ToMajor(amount), base, cur)
		if err != nil {
			return nil, err
		}
		minor := models.ToMinor(res.ConvertedAmount)
		if minor < 1 {
			minor = 1
		}
		prices = append(prices, models.Price{Currency: cur, Amount: minor})
	}
	return prices, nil
}

func validateProductFields(name *string, category *models.Category, amount *int64, currency *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return apperrors.Validation("name is required")
	}
	if category != nil && !category.Valid() {
		return apperrors.Validation("invalid category %q", *category)
	}
	if amount != nil && *amount <= 0 {
		return apperrors.Validation("amount must be greater than zero")
	}
	if currency != nil && !models.IsSupportedCurrency(*currency) {
		return apperrors.Validation("unsupported currency %q", *currency)
	}
	return nil
}

// CreateProduct inserts the product with its base price and the derived
// prices. Conversion happens before the transaction is opened.
func (s *productServiceImpl) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.ProductResponse, error) {
	req.Currency = strings.ToLower(req.Currency)
	if err := validateProductFields(&req.Name, &req.Category, &req.Amount, &req.Currency); err != nil {
		return nil, err
	}

	derived, err := s.derivePrices(ctx, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Category:     req.Category,
		BaseCurrency: req.Currency,
		Prices:       append([]models.Price{{Currency: req.Currency, Amount: req.Amount}}, derived...),
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		return tx.Products().Create(ctx, product)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("product %q already exists", product.Name)
		}
		s.logger.Error("Failed to create product", zap.String("name", product.Name), zap.Error(err))
		return nil, apperrors.Internal("Failed to create product", err)
	}

	s.logger.Info("Product created", zap.Uint("product_id", product.ID), zap.String("base_currency", product.BaseCurrency))
	recordCount(ctx, s.metrics, awspkg.MetricProductsCreated, map[string]string{"Category": string(product.Category)})

	resp := models.NewProductResponse(product)
	return &resp, nil
}

func (s *productServiceImpl) find(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("product %d not found", id)
		}
		return nil, apperrors.Internal("Failed to load product", err)
	}
	return product, nil
}

func (s *productServiceImpl) GetProductByID(ctx context.Context, id uint) (*models.ProductResponse, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := models.NewProductResponse(product)
	return &resp, nil
}

func (s *productServiceImpl) GetProducts(ctx context.Context) ([]models.ProductResponse, error) {
	products, err := s.store.Products().FindAll(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list products", err)
	}
	out := make([]models.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, models.NewProductResponse(&products[i]))
	}
	return out, nil
}

// UpdateProduct applies the supplied fields. A supplied amount replaces the
// price in the supplied currency (or the base currency). With Rederive the
// other currencies are recomputed from that price and it becomes the base.
func (s *productServiceImpl) UpdateProduct(ctx context.Context, id uint, req models.UpdateProductRequest) (*models.ProductResponse, error) {
	if req.Currency != nil {
		lower := strings.ToLower(*req.Currency)
		req.Currency = &lower
	}
	if err := validateProductFields(req.Name, req.Category, req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if req.Currency != nil && req.Amount == nil && !req.Rederive {
		return nil, apperrors.Validation("currency requires amount or rederive")
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	currency := current.BaseCurrency
	if req.Currency != nil {
		currency = *req.Currency
	}

	var prices []models.Price
	if req.Amount != nil {
		prices = append(prices, models.Price{ProductID: id, Currency: currency, Amount: *req.Amount})
	}
	if req.Rederive {
		amount, ok := current.PriceMap()[currency]
		if req.Amount != nil {
			amount, ok = *req.Amount, true
		}
		if !ok {
			return nil, apperrors.Validation("product %d has no %s price to derive from", id, currency)
		}
		derived, err := s.derivePrices(ctx, amount, currency)
		if err != nil {
			return nil, err
		}
		for _, p := range derived {
			p.ProductID = id
			prices = append(prices, p)
		}
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Rederive {
		fields["base_currency"] = currency
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Products().Update(ctx, id, fields); err != nil {
			return err
		}
		for i := range prices {
			if err := tx.Products().UpsertPrice(ctx, &prices[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			return nil, apperrors.NotFound("product %d not found", id)
		case repository.IsUniqueViolation(err):
			return nil, apperrors.Conflict("product name already exists")
		}
		s.logger.Error("Failed to update product", zap.Uint("product_id", id), zap.Error(err))
		return nil, apperrors.Internal("Failed to update product", err)
	}

	return s.GetProductByID(ctx, id)
}

// DeleteProduct removes the product and its prices. Products referenced by
// an order line cannot be deleted.
func (s *productServiceImpl) DeleteProduct(ctx context.Context, id uint) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	refs, err := s.store.Products().CountOrderReferences(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to check product references", err)
	}
	if refs > 0 {
		return apperrors.Conflict("product %d is referenced by %d order items", id, refs)
	}

	var deleted int64
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Products().Delete(ctx, id)
		deleted = n
		return err
	})
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return apperrors.Conflict("product %d is referenced by an order", id)
		}
		return apperrors.Internal("Failed to delete product", err)
	}
	if deleted == 0 {
		return apperrors.NotFound("product %d not found", id)
	}

	s.logger.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

// GetProductPrice returns the stored price for the exact currency. A missing
// row is an error; prices are never derived on read.
func (s *productServiceImpl) GetProductPrice(ctx context.Context, productID uint, currency string) (int64, error) {
	return productPrice(ctx, s.store.Products(), productID, currency)
}

func productPrice(ctx context.Context, products repository.ProductRepository, productID uint, currency string) (int64, error) {
	price, err := products.FindPrice(ctx, productID, currency)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, apperrors.NotFound("no %s price for product %d", currency, productID)
		}
		return 0, apperrors.Internal("Failed to load product price", err)
	}
	return price.Amount, nil
}
