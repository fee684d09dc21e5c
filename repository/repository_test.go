package repository_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestProductCreate_InsertsPrices(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	product := &models.Product{
		Name:         "Kindle Paperwhite",
		Category:     models.CategoryElectronics,
		BaseCurrency: models.CurrencyUSD,
		Prices: []models.Price{
			{Currency: models.CurrencyUSD, Amount: 14999},
			{Currency: models.CurrencyINR, Amount: 1244917},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "prices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "prices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), product)

	require.NoError(t, err)
	assert.Equal(t, uint(10), product.ID)
	assert.Equal(t, uint(10), product.Prices[1].ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := repo.FindByID(context.Background(), 999)

	assert.Nil(t, p)
	assert.True(t, repository.IsNotFound(err))
}

func TestProductFindByID_PreloadsPrices(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "base_currency", "created_at", "updated_at"}).
			AddRow(10, "Desk", "Furniture", "inr", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "prices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "currency", "amount"}).
			AddRow(1, 10, "inr", 1500000).
			AddRow(2, 10, "usd", 18000))

	p, err := repo.FindByID(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"inr": 1500000, "usd": 18000}, p.PriceMap())
}

func TestProductFindPrice_Missing(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "prices" WHERE product_id = $1 AND currency = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindPrice(context.Background(), 10, "usd")

	assert.True(t, repository.IsNotFound(err))
}

func TestProductUpsertPrice_OnConflict(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "prices" .* ON CONFLICT \("product_id","currency"\) DO UPDATE SET "amount"="excluded"."amount"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	err := repo.UpsertPrice(context.Background(), &models.Price{ProductID: 10, Currency: "usd", Amount: 20000})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductDelete_RemovesPricesFirst(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "prices" WHERE product_id = $1`)).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "products" WHERE "products"."id" = $1`)).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows, err := repo.Delete(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindExistingIDs(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "products" WHERE id IN ($1,$2)`)).
		WithArgs(10, 999).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	ids, err := repo.FindExistingIDs(context.Background(), []uint{10, 999})

	require.NoError(t, err)
	assert.Equal(t, []uint{10}, ids)
}

func newOrder(items int) *models.Order {
	order := &models.Order{
		UserID:            1,
		Currency:          models.CurrencyUSD,
		ExchangeRate:      decimal.RequireFromString("0.012"),
		Status:            models.OrderStatusProcessing,
		PaymentMethod:     models.PaymentMethodPolar,
		ShippingAddressID: 3,
		BillingAddressID:  3,
	}
	for i := 0; i < items; i++ {
		order.Items = append(order.Items, models.OrderItem{ProductID: uint(10 + i), Quantity: 1, PriceAtOrder: 500})
	}
	order.TotalAmount, _ = order.ItemsTotal()
	return order
}

func TestOrderCreate_InsideTransactionCommits(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)
	order := newOrder(2)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_items"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_items"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		return tx.Orders().Create(context.Background(), order)
	})

	require.NoError(t, err)
	assert.Equal(t, uint(7), order.Items[1].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreate_SecondItemFailureRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)
	order := newOrder(3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_items"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_items"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		return tx.Orders().Create(context.Background(), order)
	})

	assert.ErrorContains(t, err, "insert order item 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderFindAll_AppliesFiltersAndCounts(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	userID := uint(1)
	status := models.OrderStatusProcessing
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "orders" WHERE user_id = $1 AND status = $2`)).
		WithArgs(userID, status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC,id DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "total_amount_currency", "created_at"}).
			AddRow(9, 1, status, 1000, "usd", now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_items" WHERE "order_items"."order_id" = $1`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_at_order"}).
			AddRow(1, 9, 10, 2, 500))

	orders, total, err := repo.FindAll(context.Background(), models.OrderFilter{UserID: &userID, Status: &status, Limit: 1, Offset: 0})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 1)
	itemsTotal, err := orders[0].ItemsTotal()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), itemsTotal)
	assert.Equal(t, "usd", orders[0].Currency)
}

func TestOrderUpdate_NoRowsIsNotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 42, map[string]interface{}{"notes": "leave at door"})

	assert.True(t, repository.IsNotFound(err))
}

func TestOrderHasOpenPayment(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "payments" WHERE order_id = $1 AND status <> $2`)).
		WithArgs(9, models.PaymentStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "payments" WHERE order_id = $1 AND status <> $2`)).
		WithArgs(10, models.PaymentStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	open, err := repo.HasOpenPayment(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, open)

	open, err = repo.HasOpenPayment(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderLockByID_LoadsItems(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status"}).AddRow(9, 3, models.OrderStatusProcessing))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_items" WHERE order_id = $1 ORDER BY id ASC`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_at_order"}).
			AddRow(1, 9, 10, 2, 500))

	o, err := repo.LockByID(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, uint(3), o.UserID)
	require.Len(t, o.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressFindDefault(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormAddressRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "addresses" WHERE user_id = $1 AND type = $2 AND is_default = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "street", "city", "postal_code", "country", "is_default"}).
			AddRow(3, 1, "shipping", "12 MG Road", "Bengaluru", "560001", "IN", true))

	a, err := repo.FindDefault(context.Background(), 1, models.AddressTypeShipping)

	require.NoError(t, err)
	assert.Equal(t, uint(3), a.ID)
	assert.True(t, a.IsDefault)
}

func TestPaymentFindByProviderRef(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments" WHERE provider = $1 AND provider_ref = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "provider", "status", "amount", "currency"}).
			AddRow("5b7c9c2e-3f7e-4d1c-9f59-6a1d3c1f0b11", 7, "razorpay", "pending", 41500, "inr"))

	p, err := repo.FindByProviderRef(context.Background(), "razorpay", "order_Nx1")

	require.NoError(t, err)
	assert.Equal(t, uint(7), p.OrderID)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Name: "Asha", Email: "asha@example.com", PasswordHash: "x"})

	assert.True(t, repository.IsUniqueViolation(err))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, repository.IsUniqueViolation(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, repository.IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, repository.IsUniqueViolation(errors.New("timeout")))
	assert.True(t, repository.IsNotFound(fmt.Errorf("find: %w", gorm.ErrRecordNotFound)))
}
