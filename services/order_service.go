package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"github.com/yashrajoria/shopswift-api/repository"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderService places orders and applies status-gated mutations.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uint, input models.CreateOrderInput) (*models.OrderResult, error)
	GetOrderByID(ctx context.Context, orderID, userID uint) (*models.OrderResult, error)
	UpdateOrder(ctx context.Context, orderID, userID uint, input models.UpdateOrderInput) (*models.OrderResult, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, status string) (*models.OrderResult, error)
	AddProductToOrder(ctx context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error)
	RemoveProductFromOrder(ctx context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error)
	GetAllOrders(ctx context.Context, filter models.OrderFilter) (*models.OrderList, error)
}

type orderServiceImpl struct {
	store    repository.Store
	currency CurrencyService
	events   eventPublisher
	metrics  MetricCounter
	logger   *zap.Logger
}

func NewOrderService(
	store repository.Store,
	currency CurrencyService,
	sns awspkg.SNSPublisher,
	topicArn string,
	metrics MetricCounter,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		store:    store,
		currency: currency,
		events:   eventPublisher{sns: sns, topicArn: topicArn, logger: logger},
		metrics:  metrics,
		logger:   logger,
	}
}

// checkAddressInput accepts an existing address id, a request for the
// user's default, or a complete new address.
func checkAddressInput(name string, in *models.AddressInput) error {
	if in.ID != nil {
		if *in.ID == 0 {
			return apperrors.Validation("%s.id must be greater than 0", name)
		}
		return nil
	}
	if in.UseDefault || isEmptyAddress(in) {
		return nil
	}
	var missing []string
	for _, f := range [...]struct{ name, value string }{
		{"street", in.Street},
		{"city", in.City},
		{"postal_code", in.PostalCode},
		{"country", in.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperrors.Validation("%s is incomplete: missing %s", name, strings.Join(missing, ", "))
	}
	return nil
}

func isEmptyAddress(in *models.AddressInput) bool {
	return in.Street == "" && in.City == "" && in.State == "" && in.PostalCode == "" && in.Country == ""
}

// CreateOrder validates the input, resolves the exchange rate, then writes
// the order, its addresses and its items in one transaction.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, userID uint, input models.CreateOrderInput) (*models.OrderResult, error) {
	if err := requirePositive("user id", userID); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if err := checkAddressInput("shipping_address", input.ShippingAddress); err != nil {
		return nil, err
	}
	if input.BillingAddress != nil {
		if err := checkAddressInput("billing_address", input.BillingAddress); err != nil {
			return nil, err
		}
	}

	currency, err := s.currency.CurrencyForPaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	rate, err := s.currency.GetExchangeRate(ctx, models.ReferenceCurrency, currency)
	if err != nil {
		return nil, err
	}

	lines, err := mergeLines(input.Products)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(lines))
	for _, p := range lines {
		ids = append(ids, p.ProductID)
	}

	var order *models.Order
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := ensureProductsExist(ctx, tx.Products(), ids); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		var total int64
		for _, p := range lines {
			price, err := productPrice(ctx, tx.Products(), p.ProductID, currency)
			if err != nil {
				return err
			}
			sub, err := models.LineTotal(price, p.Quantity)
			if err != nil {
				return amountError(err)
			}
			if total, err = models.AddAmounts(total, sub); err != nil {
				return amountError(err)
			}
			items = append(items, models.OrderItem{
				ProductID:    p.ProductID,
				Quantity:     p.Quantity,
				PriceAtOrder: price,
			})
		}

		shipping, err := s.resolveAddress(ctx, tx.Addresses(), userID, models.AddressTypeShipping, input.ShippingAddress)
		if err != nil {
			return err
		}
		billing := shipping
		if input.BillingAddress != nil {
			if billing, err = s.resolveAddress(ctx, tx.Addresses(), userID, models.AddressTypeBilling, input.BillingAddress); err != nil {
				return err
			}
		}

		ref, err := referenceAmount(total, rate)
		if err != nil {
			return amountError(err)
		}
		order = &models.Order{
			UserID:            userID,
			TotalAmount:       total,
			Currency:          currency,
			ReferenceAmount:   ref,
			ExchangeRate:      rate,
			Status:            models.OrderStatusProcessing,
			PaymentMethod:     input.PaymentMethod,
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
			Notes:             input.Notes,
			Items:             items,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		order.ShippingAddress = shipping
		order.BillingAddress = billing
		return nil
	})
	if err != nil {
		recordCount(ctx, s.metrics, awspkg.MetricOrdersFailed, map[string]string{"PaymentMethod": input.PaymentMethod})
		return nil, s.txError("Failed to create order", err)
	}

	s.logger.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", userID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.String("currency", order.Currency),
	)
	recordCount(ctx, s.metrics, awspkg.MetricOrdersCreated, map[string]string{"Currency": order.Currency})
	s.publishOrderEvent(ctx, "order_created", order)

	return buildOrderResult(order), nil
}

// ensureProductsExist fails with NotFound naming the first id that has no
// product row.
func ensureProductsExist(ctx context.Context, products repository.ProductRepository, ids []uint) error {
	found, err := products.FindExistingIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return err
	}
	existing := make(map[uint]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			return apperrors.NotFound("invalid product: product %d not found", id)
		}
	}
	return nil
}

// resolveAddress returns an owned address by id, the user's default when
// asked for (or when no fields are given), or a newly created address.
func (s *orderServiceImpl) resolveAddress(ctx context.Context, addresses repository.AddressRepository, userID uint, typ string, in *models.AddressInput) (*models.Address, error) {
	if in.ID != nil {
		addr, err := addresses.FindByIDAndUserID(ctx, *in.ID, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperrors.NotFound("address %d not found", *in.ID)
			}
			return nil, err
		}
		return addr, nil
	}

	if in.UseDefault || isEmptyAddress(in) {
		addr, err := addresses.FindDefault(ctx, userID, typ)
		if err == nil {
			return addr, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
		if isEmptyAddress(in) {
			return nil, apperrors.Validation("no default %s address on file", typ)
		}
	}

	if in.SetDefault {
		if err := addresses.ClearDefault(ctx, userID, typ); err != nil {
			return nil, err
		}
	}
	addr := &models.Address{
		UserID:     userID,
		Type:       typ,
		Street:     strings.TrimSpace(in.Street),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		IsDefault:  in.SetDefault,
	}
	if err := addresses.Create(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *orderServiceImpl) GetOrderByID(ctx context.Context, orderID, userID uint) (*models.OrderResult, error) {
	order, err := s.store.Orders().FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("order %d not found", orderID)
		}
		return nil, apperrors.Internal("Failed to load order", err)
	}
	return buildOrderResult(order), nil
}

// lockOrder loads the caller's order for update and rejects terminal orders.
func lockOrder(ctx context.Context, tx repository.Store, orderID, userID uint) (*models.Order, error) {
	order, err := tx.Orders().FindByIDForUpdate(ctx, orderID, userID)
	return checkLocked(order, err, orderID)
}

func checkLocked(order *models.Order, err error, orderID uint) (*models.Order, error) {
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) {
		return nil, apperrors.StateConflict("cannot modify terminal order %d (status %s)", orderID, order.Status)
	}
	return order, nil
}

// lockItems is lockOrder for item changes. Once a payment is pending or
// succeeded the charged amount is fixed, so items and total are too.
func lockItems(ctx context.Context, tx repository.Store, orderID, userID uint) (*models.Order, error) {
	order, err := lockOrder(ctx, tx, orderID, userID)
	if err != nil {
		return nil, err
	}
	open, err := tx.Orders().HasOpenPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, apperrors.StateConflict("order %d has a payment in progress or completed", orderID)
	}
	return order, nil
}

func validTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from == models.OrderStatusProcessing &&
		(to == models.OrderStatusDelivered || to == models.OrderStatusCancelled)
}

func (s *orderServiceImpl) UpdateOrder(ctx context.Context, orderID, userID uint, input models.UpdateOrderInput) (*models.OrderResult, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var statusChanged bool
	var updated *models.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := lockOrder(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if input.Status != nil {
			if *input.Status != order.Status && *input.Status != models.OrderStatusCancelled {
				return apperrors.Forbidden("only an admin can move an order to " + *input.Status)
			}
			if !validTransition(order.Status, *input.Status) {
				return apperrors.StateConflict("cannot move order from %s to %s", order.Status, *input.Status)
			}
			if *input.Status != order.Status {
				fields["status"] = *input.Status
				order.Status = *input.Status
				statusChanged = true
			}
		}
		if input.Notes != nil {
			fields["notes"] = *input.Notes
		}
		for col, id := range map[string]*uint{
			"shipping_address_id": input.ShippingAddressID,
			"billing_address_id":  input.BillingAddressID,
		} {
			if id == nil {
				continue
			}
			if _, err := tx.Addresses().FindByIDAndUserID(ctx, *id, userID); err != nil {
				if repository.IsNotFound(err) {
					return apperrors.NotFound("address %d not found", *id)
				}
				return err
			}
			fields[col] = *id
		}
		if len(fields) == 0 {
			updated = order
			return nil
		}
		fields["updated_at"] = time.Now()
		if err := tx.Orders().Update(ctx, orderID, fields); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, s.txError("Failed to update order", err)
	}

	if statusChanged {
		s.logger.Info("Order status changed", zap.Uint("order_id", orderID), zap.String("status", updated.Status))
		s.publishOrderEvent(ctx, "order_status_changed", updated)
	}
	return s.GetOrderByID(ctx, orderID, userID)
}

// UpdateOrderStatus moves any user's order along the status machine. It
// backs the admin route; customers can only cancel through UpdateOrder.
func (s *orderServiceImpl) UpdateOrderStatus(ctx context.Context, orderID uint, status string) (*models.OrderResult, error) {
	if err := requirePositive("order id", orderID); err != nil {
		return nil, err
	}
	if err := validateStruct(models.UpdateOrderStatusInput{Status: status}); err != nil {
		return nil, err
	}

	var changed bool
	var updated *models.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if order, err = checkLocked(order, err, orderID); err != nil {
			return err
		}
		if !validTransition(order.Status, status) {
			return apperrors.StateConflict("cannot move order from %s to %s", order.Status, status)
		}
		updated = order
		if status == order.Status {
			return nil
		}
		order.Status = status
		changed = true
		return tx.Orders().Update(ctx, orderID, map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	})
	if err != nil {
		return nil, s.txError("Failed to update order status", err)
	}

	if changed {
		s.logger.Info("Order status changed", zap.Uint("order_id", orderID), zap.String("status", status))
		s.publishOrderEvent(ctx, "order_status_changed", updated)
	}
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load order", err)
	}
	return buildOrderResult(order), nil
}

// AddProductToOrder adds quantity of a product. A product already on the
// order keeps its snapshot price and only gains quantity.
func (s *orderServiceImpl) AddProductToOrder(ctx context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error) {
	if err := validateStruct(models.AddOrderItemInput{ProductID: productID, Quantity: quantity}); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := lockItems(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		if err := ensureProductsExist(ctx, tx.Products(), []uint{productID}); err != nil {
			return err
		}

		if i := itemIndex(order.Items, productID); i >= 0 {
			if order.Items[i].Quantity+quantity > models.MaxItemQuantity {
				return apperrors.Validation("quantity of product %d must be at most %d", productID, models.MaxItemQuantity)
			}
			order.Items[i].Quantity += quantity
			if err := tx.Orders().UpdateItemQuantity(ctx, order.Items[i].ID, order.Items[i].Quantity); err != nil {
				return err
			}
		} else {
			price, err := productPrice(ctx, tx.Products(), productID, order.Currency)
			if err != nil {
				return err
			}
			item := models.OrderItem{OrderID: order.ID, ProductID: productID, Quantity: quantity, PriceAtOrder: price}
			if err := tx.Orders().CreateItem(ctx, &item); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		return writeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, s.txError("Failed to add product to order", err)
	}
	return s.GetOrderByID(ctx, orderID, userID)
}

// RemoveProductFromOrder removes quantity of a product; a quantity of zero
// or at least the current quantity drops the line. The last line of an
// order cannot be dropped.
func (s *orderServiceImpl) RemoveProductFromOrder(ctx context.Context, orderID, userID, productID uint, quantity int) (*models.OrderResult, error) {
	if quantity < 0 {
		return nil, apperrors.Validation("quantity must not be negative")
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := lockItems(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		i := itemIndex(order.Items, productID)
		if i < 0 {
			return apperrors.NotFound("product %d is not on order %d", productID, orderID)
		}

		item := order.Items[i]
		if quantity == 0 || quantity >= item.Quantity {
			if len(order.Items) == 1 {
				return apperrors.Validation("an order must keep at least one item")
			}
			if err := tx.Orders().DeleteItem(ctx, item.ID); err != nil {
				return err
			}
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
		} else {
			order.Items[i].Quantity -= quantity
			if err := tx.Orders().UpdateItemQuantity(ctx, item.ID, order.Items[i].Quantity); err != nil {
				return err
			}
		}
		return writeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, s.txError("Failed to remove product from order", err)
	}
	return s.GetOrderByID(ctx, orderID, userID)
}

// writeTotals recomputes the order total from its live items.
func writeTotals(ctx context.Context, tx repository.Store, order *models.Order) error {
	total, err := order.ItemsTotal()
	if err != nil {
		return amountError(err)
	}
	ref, err := referenceAmount(total, order.ExchangeRate)
	if err != nil {
		return amountError(err)
	}
	order.TotalAmount = total
	order.ReferenceAmount = ref
	return tx.Orders().Update(ctx, order.ID, map[string]interface{}{
		"total_amount":     order.TotalAmount,
		"reference_amount": order.ReferenceAmount,
		"updated_at":       time.Now(),
	})
}

func (s *orderServiceImpl) GetAllOrders(ctx context.Context, filter models.OrderFilter) (*models.OrderList, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.OrderStatusProcessing, models.OrderStatusDelivered, models.OrderStatusCancelled:
		default:
			return nil, apperrors.Validation("invalid status %q", *filter.Status)
		}
	}

	orders, total, err := s.store.Orders().FindAll(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("Failed to list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.OrderList{Orders: orders, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// txError keeps application errors raised inside a transaction and wraps
// everything else as internal.
func (s *orderServiceImpl) txError(msg string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error(msg, zap.Error(err))
	return apperrors.Internal(msg, err)
}

func (s *orderServiceImpl) publishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	s.events.publish(ctx, eventType, models.OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Timestamp:   time.Now().UTC(),
	})
}

// referenceAmount converts a total in the order currency back to the
// reference currency using the rate stored on the order.
var maxMinor = decimal.NewFromInt(math.MaxInt64)

func referenceAmount(total int64, rate decimal.Decimal) (int64, error) {
	if !rate.IsPositive() || rate.Equal(decimal.NewFromInt(1)) {
		return total, nil
	}
	ref := models.ToMajor(total).DivRound(rate, 8)
	if ref.Shift(2).Round(0).GreaterThan(maxMinor) {
		return 0, models.ErrAmountOverflow
	}
	return models.ToMinor(ref), nil
}

// amountError maps an overflowing total to a Validation error.
func amountError(err error) error {
	if errors.Is(err, models.ErrAmountOverflow) {
		return apperrors.Validation("order total exceeds the supported amount")
	}
	return err
}

func buildOrderResult(order *models.Order) *models.OrderResult {
	rate := order.ExchangeRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}

	items := make([]models.OrderItemResponse, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, models.OrderItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			PriceAtOrder: models.ToMajor(it.PriceAtOrder),
			Subtotal:     models.ToMajor(it.PriceAtOrder * int64(it.Quantity)),
		})
	}

	return &models.OrderResult{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Notes:           order.Notes,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Items:           items,
		Pricing: models.PricingSummary{
			OriginalAmount:   models.ToMajor(order.ReferenceAmount),
			OriginalCurrency: models.ReferenceCurrency,
			ConvertedAmount:  models.ToMajor(order.TotalAmount),
			Currency:         order.Currency,
			ExchangeRate:     rate,
			TotalAmountMinor: order.TotalAmount,
		},
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func itemIndex(items []models.OrderItem, productID uint) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(in []models.OrderProductInput) ([]models.OrderProductInput, error) {
	index := make(map[uint]int, len(in))
	out := make([]models.OrderProductInput, 0, len(in))
	for _, p := range in {
		if i, ok := index[p.ProductID]; ok {
			if out[i].Quantity+p.Quantity > models.MaxItemQuantity {
				return nil, apperrors.Validation("quantity of product %d must be at most %d", p.ProductID, models.MaxItemQuantity)
			}
			out[i].Quantity += p.Quantity
			continue
		}
		index[p.ProductID] = len(out)
		out = append(out, p)
	}
	return out, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
