package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- in-memory store ----

type fakeState struct {
	products  map[uint]models.Product
	orders    map[uint]models.Order
	addresses map[uint]models.Address
	nextID    uint

	// openPayments marks orders holding a pending or succeeded payment.
	openPayments map[uint]bool

	// failItemInsert makes the Nth item of an order insert fail (1-based).
	failItemInsert int
}

func newFakeState() *fakeState {
	return &fakeState{
		products:     map[uint]models.Product{},
		orders:       map[uint]models.Order{},
		addresses:    map[uint]models.Address{},
		nextID:       100,
		openPayments: map[uint]bool{},
	}
}

func (s *fakeState) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		products:       make(map[uint]models.Product, len(s.products)),
		orders:         make(map[uint]models.Order, len(s.orders)),
		addresses:      make(map[uint]models.Address, len(s.addresses)),
		nextID:         s.nextID,
		openPayments:   make(map[uint]bool, len(s.openPayments)),
		failItemInsert: s.failItemInsert,
	}
	for k, v := range s.openPayments {
		c.openPayments[k] = v
	}
	for k, v := range s.products {
		v.Prices = append([]models.Price(nil), v.Prices...)
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	return c
}

type fakeStore struct {
	mu           *sync.Mutex
	st           *fakeState
	transactions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{mu: &sync.Mutex{}, st: newFakeState()}
}

func (f *fakeStore) Products() repository.ProductRepository  { return &fakeProductRepo{st: f.st} }
func (f *fakeStore) Orders() repository.OrderRepository      { return &fakeOrderRepo{st: f.st} }
func (f *fakeStore) Addresses() repository.AddressRepository { return &fakeAddressRepo{st: f.st} }

// Transaction runs fn against a copy of the state and keeps the copy only
// when fn succeeds.
func (f *fakeStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions++
	tx := &fakeStore{mu: &sync.Mutex{}, st: f.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	*f.st = *tx.st
	return nil
}

func (f *fakeStore) addProduct(id uint, name string, prices map[string]int64) {
	p := models.Product{ID: id, Name: name, Category: models.CategoryElectronics, BaseCurrency: models.CurrencyINR}
	for cur, amt := range prices {
		p.Prices = append(p.Prices, models.Price{ID: f.st.id(), ProductID: id, Currency: cur, Amount: amt})
	}
	f.st.products[id] = p
}

type fakeProductRepo struct{ st *fakeState }

func (r *fakeProductRepo) Create(_ context.Context, p *models.Product) error {
	for _, existing := range r.st.products {
		if existing.Name == p.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.st.id()
	for i := range p.Prices {
		p.Prices[i].ID = r.st.id()
		p.Prices[i].ProductID = p.ID
	}
	stored := *p
	stored.Prices = append([]models.Price(nil), p.Prices...)
	r.st.products[p.ID] = stored
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uint) (*models.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Prices = append([]models.Price(nil), p.Prices...)
	sort.Slice(p.Prices, func(i, j int) bool { return p.Prices[i].Currency < p.Prices[j].Currency })
	return &p, nil
}

func (r *fakeProductRepo) FindAll(ctx context.Context) ([]models.Product, error) {
	ids := make([]uint, 0, len(r.st.products))
	for id := range r.st.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p, _ := r.FindByID(ctx, id)
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeProductRepo) Update(_ context.Context, id uint, fields map[string]interface{}) error {
	p, ok := r.st.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			for oid, other := range r.st.products {
				if oid != id && other.Name == v.(string) {
					return gorm.ErrDuplicatedKey
				}
			}
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "category":
			p.Category = v.(models.Category)
		case "base_currency":
			p.BaseCurrency = v.(string)
		}
	}
	r.st.products[id] = p
	return nil
}

func (r *fakeProductRepo) UpsertPrice(_ context.Context, price *models.Price) error {
	p, ok := r.st.products[price.ProductID]
	if !ok {
		return gorm.ErrForeignKeyViolated
	}
	for i := range p.Prices {
		if p.Prices[i].Currency == price.Currency {
			p.Prices[i].Amount = price.Amount
			r.st.products[p.ID] = p
			return nil
		}
	}
	price.ID = r.st.id()
	p.Prices = append(p.Prices, *price)
	r.st.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uint) (int64, error) {
	if _, ok := r.st.products[id]; !ok {
		return 0, nil
	}
	delete(r.st.products, id)
	return 1, nil
}

func (r *fakeProductRepo) FindPrice(_ context.Context, productID uint, currency string) (*models.Price, error) {
	p, ok := r.st.products[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for _, price := range p.Prices {
		if price.Currency == currency {
			return &price, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) FindExistingIDs(_ context.Context, ids []uint) ([]uint, error) {
	var found []uint
	for _, id := range ids {
		if _, ok := r.st.products[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *fakeProductRepo) CountOrderReferences(_ context.Context, productID uint) (int64, error) {
	var n int64
	for _, o := range r.st.orders {
		for _, it := range o.Items {
			if it.ProductID == productID {
				n++
			}
		}
	}
	return n, nil
}

type fakeOrderRepo struct{ st *fakeState }

func (r *fakeOrderRepo) Create(_ context.Context, o *models.Order) error {
	o.ID = r.st.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.Items = nil
	stored.ShippingAddress, stored.BillingAddress = nil, nil
	r.st.orders[o.ID] = stored

	for i := range o.Items {
		if r.st.failItemInsert == i+1 {
			return fmt.Errorf("insert order item %d: simulated failure", i+1)
		}
		o.Items[i].ID = r.st.id()
		o.Items[i].OrderID = o.ID
		stored.Items = append(stored.Items, o.Items[i])
		r.st.orders[o.ID] = stored
	}
	return nil
}

func (r *fakeOrderRepo) load(id uint, withAddresses bool) (*models.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if withAddresses {
		if a, ok := r.st.addresses[o.ShippingAddressID]; ok {
			o.ShippingAddress = &a
		}
		if a, ok := r.st.addresses[o.BillingAddressID]; ok {
			o.BillingAddress = &a
		}
	}
	return &o, nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uint) (*models.Order, error) {
	return r.load(id, true)
}

func (r *fakeOrderRepo) FindByIDAndUserID(_ context.Context, id, userID uint) (*models.Order, error) {
	o, err := r.load(id, true)
	if err != nil || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByIDForUpdate(_ context.Context, id, userID uint) (*models.Order, error) {
	o, err := r.load(id, false)
	if err != nil || o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) LockByID(_ context.Context, id uint) (*models.Order, error) {
	return r.load(id, false)
}

func (r *fakeOrderRepo) HasOpenPayment(_ context.Context, orderID uint) (bool, error) {
	return r.st.openPayments[orderID], nil
}

func (r *fakeOrderRepo) FindAll(_ context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	var matched []models.Order
	for _, o := range r.st.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, id uint, fields map[string]interface{}) error {
	o, ok := r.st.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(string)
		case "notes":
			o.Notes = v.(string)
		case "shipping_address_id":
			o.ShippingAddressID = v.(uint)
		case "billing_address_id":
			o.BillingAddressID = v.(uint)
		case "total_amount":
			o.TotalAmount = v.(int64)
		case "reference_amount":
			o.ReferenceAmount = v.(int64)
		case "updated_at":
			o.UpdatedAt = v.(time.Time)
		}
	}
	r.st.orders[id] = o
	return nil
}

func (r *fakeOrderRepo) CreateItem(_ context.Context, item *models.OrderItem) error {
	o, ok := r.st.orders[item.OrderID]
	if !ok {
		return gorm.ErrForeignKeyViolated
	}
	item.ID = r.st.id()
	o.Items = append(o.Items, *item)
	r.st.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) UpdateItemQuantity(_ context.Context, itemID uint, quantity int) error {
	for id, o := range r.st.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items[i].Quantity = quantity
				r.st.orders[id] = o
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) DeleteItem(_ context.Context, itemID uint) error {
	for id, o := range r.st.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items = append(o.Items[:i], o.Items[i+1:]...)
				r.st.orders[id] = o
				return nil
			}
		}
	}
	return nil
}

type fakeAddressRepo struct{ st *fakeState }

func (r *fakeAddressRepo) Create(_ context.Context, a *models.Address) error {
	a.ID = r.st.id()
	r.st.addresses[a.ID] = *a
	return nil
}

func (r *fakeAddressRepo) FindByIDAndUserID(_ context.Context, id, userID uint) (*models.Address, error) {
	a, ok := r.st.addresses[id]
	if !ok || a.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *fakeAddressRepo) FindDefault(_ context.Context, userID uint, typ string) (*models.Address, error) {
	for _, a := range r.st.addresses {
		if a.UserID == userID && a.Type == typ && a.IsDefault {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAddressRepo) FindByUserID(_ context.Context, userID uint) ([]models.Address, error) {
	var out []models.Address
	for _, a := range r.st.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAddressRepo) ClearDefault(_ context.Context, userID uint, typ string) error {
	for id, a := range r.st.addresses {
		if a.UserID == userID && a.Type == typ {
			a.IsDefault = false
			r.st.addresses[id] = a
		}
	}
	return nil
}

// ---- rate source ----

type fakeRateSource struct {
	mu         sync.Mutex
	rates      map[string]decimal.Decimal
	err        error
	convertErr error
	calls      int
}

func (f *fakeRateSource) FetchRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	r, ok := f.rates[pairKey(from, to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s", pairKey(from, to))
	}
	return r, nil
}

func (f *fakeRateSource) FetchConvertedAmount(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if f.convertErr != nil {
		return decimal.Zero, f.convertErr
	}
	r, err := f.FetchRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(r), nil
}

// ---- SNS / metrics ----

type publishedMessage struct {
	topic      string
	message    []byte
	attributes map[string]string
}

type fakeSNS struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte, attributes map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic: topicArn, message: message, attributes: attributes})
	return f.err
}

func (f *fakeSNS) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for _, p := range f.published {
		out = append(out, p.attributes["event_type"])
	}
	return out
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[name]++
	return nil
}

func (f *fakeMetrics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

// ---- users / payments ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint]models.User
	next  uint
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{users: map[uint]models.User{}} }

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	r.next++
	u.ID = r.next
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments []models.Payment
}

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.payments = append(r.payments, *p)
	return nil
}

func (r *fakePaymentRepo) FindLatestByOrderID(_ context.Context, orderID uint) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.payments) - 1; i >= 0; i-- {
		if r.payments[i].OrderID == orderID {
			p := r.payments[i]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) FindByProviderRef(_ context.Context, provider, ref string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Provider == provider && p.ProviderRef != nil && *p.ProviderRef == ref {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) Update(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.payments {
		if r.payments[i].ID != id {
			continue
		}
		p := &r.payments[i]
		for k, v := range updates {
			switch k {
			case "status":
				p.Status = v.(string)
			case "provider_ref":
				s := v.(string)
				p.ProviderRef = &s
			case "checkout_url":
				s := v.(string)
				p.CheckoutURL = &s
			case "provider_payment_id":
				s := v.(string)
				p.ProviderPaymentID = &s
			case "failure_reason":
				p.FailureReason = v.(string)
			case "event_payload":
				s := v.(string)
				p.EventPayload = &s
			case "succeeded_at":
				t := v.(time.Time)
				p.SucceededAt = &t
			case "failed_at":
				t := v.(time.Time)
				p.FailedAt = &t
			}
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) get(id uuid.UUID) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id {
			return p
		}
	}
	return models.Payment{}
}

func testLogger() *zap.Logger { return zap.NewNop() }

func signRazorpay(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
