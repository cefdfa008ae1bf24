package usecase_test

import (
	"context"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartLines  repo.CartLineRepository
	products   repo.ProductRepository
	variants   repo.VariantRepository
	discounts  repo.DiscountRepository
	addresses  repo.AddressRepository
	payments   repo.PaymentRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *TxReposMock) CartLines() repo.CartLineRepository   { return r.cartLines }
func (r *TxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *TxReposMock) Variants() repo.VariantRepository     { return r.variants }
func (r *TxReposMock) Discounts() repo.DiscountRepository   { return r.discounts }
func (r *TxReposMock) Addresses() repo.AddressRepository    { return r.addresses }
func (r *TxReposMock) Payments() repo.PaymentRepository     { return r.payments }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	items, _ := args.Get(0).([]model.Order)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	args := m.Called(ctx, userID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) UpdateStatusIfCurrent(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

type CartLineRepoMock struct{ mock.Mock }

func (m *CartLineRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error) {
	args := m.Called(ctx, cartID)
	lines, _ := args.Get(0).([]model.CartLine)
	return lines, args.Error(1)
}

func (m *CartLineRepoMock) UpsertLine(ctx context.Context, cartID int64, productID int64, size string, addQty int64, unitPriceSnapshot int64) error {
	args := m.Called(ctx, cartID, productID, size, addQty, unitPriceSnapshot)
	return args.Error(0)
}

func (m *CartLineRepoMock) UpdateQuantity(ctx context.Context, lineID int64, qty int64) error {
	args := m.Called(ctx, lineID, qty)
	return args.Error(0)
}

func (m *CartLineRepoMock) DeleteByID(ctx context.Context, lineID int64) error {
	args := m.Called(ctx, lineID)
	return args.Error(0)
}

func (m *CartLineRepoMock) FindByID(ctx context.Context, lineID int64) (model.CartLine, error) {
	args := m.Called(ctx, lineID)
	l, _ := args.Get(0).(model.CartLine)
	return l, args.Error(1)
}

func (m *CartLineRepoMock) IsOwnedByUser(ctx context.Context, lineID int64, userID int64) (bool, error) {
	args := m.Called(ctx, lineID, userID)
	return args.Bool(0), args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindByIDs(ctx context.Context, productIDs []int64) (map[int64]model.Product, error) {
	args := m.Called(ctx, productIDs)
	products, _ := args.Get(0).(map[int64]model.Product)
	return products, args.Error(1)
}

type VariantRepoMock struct{ mock.Mock }

func (m *VariantRepoMock) FindByProductAndSize(ctx context.Context, productID int64, size string) (model.SizeVariant, error) {
	args := m.Called(ctx, productID, size)
	v, _ := args.Get(0).(model.SizeVariant)
	return v, args.Error(1)
}

func (m *VariantRepoMock) ListByProductID(ctx context.Context, productID int64) ([]model.SizeVariant, error) {
	args := m.Called(ctx, productID)
	list, _ := args.Get(0).([]model.SizeVariant)
	return list, args.Error(1)
}

func (m *VariantRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, size string, qty int64) (bool, error) {
	args := m.Called(ctx, productID, size, qty)
	return args.Bool(0), args.Error(1)
}

func (m *VariantRepoMock) IncreaseStock(ctx context.Context, productID int64, size string, qty int64) error {
	args := m.Called(ctx, productID, size, qty)
	return args.Error(0)
}

type DiscountRepoMock struct{ mock.Mock }

func (m *DiscountRepoMock) FindByCode(ctx context.Context, code string) (model.DiscountCode, error) {
	args := m.Called(ctx, code)
	d, _ := args.Get(0).(model.DiscountCode)
	return d, args.Error(1)
}

func (m *DiscountRepoMock) IncrementUsageIfUnderLimit(ctx context.Context, discountID int64) (bool, error) {
	args := m.Called(ctx, discountID)
	return args.Bool(0), args.Error(1)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) FindMatch(ctx context.Context, userID int64, address model.Address) (model.Address, bool, error) {
	args := m.Called(ctx, userID, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Bool(1), args.Error(2)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Address)
	return list, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

type PaymentRepoMock struct{ mock.Mock }

func (m *PaymentRepoMock) Create(ctx context.Context, record model.PaymentRecord) (int64, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PaymentRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(model.PaymentRecord)
	return p, args.Error(1)
}

type EventRepoMock struct{ mock.Mock }

func (m *EventRepoMock) Create(ctx context.Context, event model.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventRepoMock) List(ctx context.Context, f repo.EventFilter) ([]model.DomainEvent, error) {
	args := m.Called(ctx, f)
	events, _ := args.Get(0).([]model.DomainEvent)
	return events, args.Error(1)
}

// 固定の見積もりを返すRateCalculator
type stubRates struct {
	quote usecase.RateQuote
	err   error
}

func (s stubRates) Quote(ctx context.Context, req usecase.RateRequest) (usecase.RateQuote, error) {
	return s.quote, s.err
}

// =====================
// 共通アサーション
// =====================

func assertHTTPCode(t *testing.T, err error, status int, code string) {
	t.Helper()

	he, ok := usecase.AsHTTPError(err)
	if !assert.True(t, ok, "expected HTTPError, got %v", err) {
		return
	}
	assert.Equal(t, status, he.Status)
	assert.Equal(t, code, he.Code)
}
