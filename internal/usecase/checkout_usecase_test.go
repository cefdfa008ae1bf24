package usecase_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type checkoutFixture struct {
	txm        *TxManagerMock
	carts      *CartRepoMock
	cartLines  *CartLineRepoMock
	products   *ProductRepoMock
	variants   *VariantRepoMock
	discounts  *DiscountRepoMock
	orders     *OrderRepoMock
	orderItems *OrderItemRepoMock
	addresses  *AddressRepoMock
	payments   *PaymentRepoMock
	events     *EventRepoMock
	uc         *usecase.CheckoutUsecase
}

func newCheckoutFixture(quote usecase.RateQuote) *checkoutFixture {
	f := &checkoutFixture{
		txm:        new(TxManagerMock),
		carts:      new(CartRepoMock),
		cartLines:  new(CartLineRepoMock),
		products:   new(ProductRepoMock),
		variants:   new(VariantRepoMock),
		discounts:  new(DiscountRepoMock),
		orders:     new(OrderRepoMock),
		orderItems: new(OrderItemRepoMock),
		addresses:  new(AddressRepoMock),
		payments:   new(PaymentRepoMock),
		events:     new(EventRepoMock),
	}
	f.txm.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.orderItems,
		carts:      f.carts,
		cartLines:  f.cartLines,
		products:   f.products,
		variants:   f.variants,
		discounts:  f.discounts,
		addresses:  f.addresses,
		payments:   f.payments,
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	f.uc = usecase.NewCheckoutUsecase(
		f.txm, f.carts, f.cartLines, f.products, f.variants,
		f.discounts, f.orders, stubRates{quote: quote}, f.events, log,
	)
	return f
}

func validShipping() usecase.AddressInput {
	return usecase.AddressInput{
		FullName:   "Jane Doe",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "us",
	}
}

// カートに1明細（1250セント×2）を積んだ状態を作る
func (f *checkoutFixture) stubCartWithLine() {
	f.carts.On("FindActiveByUserID", mock.Anything, int64(7)).Return(model.Cart{ID: 10, UserID: 7}, nil)
	f.cartLines.On("ListByCartID", mock.Anything, int64(10)).Return([]model.CartLine{
		{ID: 1, CartID: 10, ProductID: 1, Size: "M", Quantity: 2, UnitPriceSnapshot: 1250},
	}, nil)
	f.products.On("FindByIDs", mock.Anything, []int64{1}).Return(map[int64]model.Product{
		1: {ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1250, IsActive: true},
	}, nil)
}

func TestCheckout_Unauthorized(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	_, err := f.uc.Checkout(context.Background(), 0, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assertHTTPCode(t, err, http.StatusUnauthorized, usecase.CodeUnauthenticated)
}

func TestCheckout_IdempotencyKeyTooShort(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		IdempotencyKey:  "abc",
	})

	assertHTTPCode(t, err, http.StatusBadRequest, usecase.CodeInvalidPayload)
}

func TestCheckout_InvalidShippingAddress(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: usecase.AddressInput{FullName: "Jane Doe", Country: "USA"},
	})

	assertHTTPCode(t, err, http.StatusBadRequest, usecase.CodeInvalidAddress)

	he, _ := usecase.AsHTTPError(err)
	details, ok := he.Details.(map[string][]string)
	if assert.True(t, ok) {
		assert.ElementsMatch(t, []string{"line1", "city", "postal_code", "country"}, details["missing"])
	}
}

func TestCheckout_InvalidBillingAddress(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		BillingAddress:  &usecase.AddressInput{FullName: "Jane Doe"},
	})

	assertHTTPCode(t, err, http.StatusBadRequest, usecase.CodeInvalidBillingAddress)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	existing := model.Order{
		ID: 42, Status: model.OrderStatusPending,
		SubtotalCents: 2500, DiscountCents: 0, TaxCents: 200, ShippingCents: 500, TotalCents: 3200,
		Currency: "USD",
	}
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "retry-key-123").Return(existing, true, nil)

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		IdempotencyKey:  "retry-key-123",
	})

	assert.NoError(t, err)
	assert.True(t, out.Idempotent)
	assert.Equal(t, int64(42), out.OrderID)
	assert.Equal(t, int64(3200), out.TotalCents)

	//再実行では検証もトランザクションも走らない
	f.txm.AssertNotCalled(t, "WithinTx", mock.Anything)
	f.carts.AssertNotCalled(t, "FindActiveByUserID", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	f.carts.On("FindActiveByUserID", mock.Anything, int64(7)).Return(model.Cart{}, repo.ErrNotFound)

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assertHTTPCode(t, err, http.StatusBadRequest, usecase.CodeEmptyCart)
}

func TestCheckout_CollectsAllStockViolations(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{})

	f.carts.On("FindActiveByUserID", mock.Anything, int64(7)).Return(model.Cart{ID: 10, UserID: 7}, nil)
	f.cartLines.On("ListByCartID", mock.Anything, int64(10)).Return([]model.CartLine{
		{ID: 1, CartID: 10, ProductID: 1, Size: "M", Quantity: 3, UnitPriceSnapshot: 1250},
		{ID: 2, CartID: 10, ProductID: 2, Size: "L", Quantity: 1, UnitPriceSnapshot: 900},
		{ID: 3, CartID: 10, ProductID: 3, Quantity: 1, UnitPriceSnapshot: 700},
	}, nil)
	f.products.On("FindByIDs", mock.Anything, []int64{1, 2, 3}).Return(map[int64]model.Product{
		1: {ID: 1, IsActive: true},
		2: {ID: 2, IsActive: false}, //非公開は在庫0扱い
		3: {ID: 3, IsActive: true},
	}, nil)
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 1}, nil)

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assertHTTPCode(t, err, http.StatusConflict, usecase.CodeStockConflict)

	he, _ := usecase.AsHTTPError(err)
	details, ok := he.Details.(map[string][]usecase.StockViolation)
	if assert.True(t, ok) {
		assert.ElementsMatch(t, []usecase.StockViolation{
			{ProductID: 1, Size: "M", Available: 1},
			{ProductID: 2, Size: "L", Available: 0},
		}, details["violations"])
	}

	//最初の違反で止まらずトランザクションにも入らない
	f.txm.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestCheckout_Success(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{}, false, nil)
	f.addresses.On("Create", mock.Anything, mock.Anything).Return(model.Address{ID: 31, Country: "US"}, nil)

	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == 7 &&
			o.Status == model.OrderStatusPending &&
			o.SubtotalCents == 2500 &&
			o.DiscountCents == 0 &&
			o.TaxCents == 200 &&
			o.ShippingCents == 500 &&
			o.TotalCents == 3200 &&
			o.Currency == "USD" &&
			o.ShippingAddressID == 31 &&
			o.BillingAddressID == 31 &&
			o.Email == "receipts@example.com" &&
			o.IdempotencyKey == nil
	})).Return(int64(99), nil)

	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1250, IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)

	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 &&
			items[0].NameSnapshot == "Tee" &&
			items[0].SKUSnapshot == "TEE-1" &&
			items[0].Size == "M" &&
			items[0].UnitPriceSnapshot == 1250 &&
			items[0].Quantity == 2
	})).Return(nil)

	f.payments.On("Create", mock.Anything, mock.MatchedBy(func(p model.PaymentRecord) bool {
		return p.OrderID == 99 &&
			p.Status == model.PaymentStatusPending &&
			p.AmountCents == 3200 &&
			p.Currency == "USD" &&
			p.Reference != ""
	})).Return(int64(1), nil)

	f.events.On("Create", mock.Anything, mock.MatchedBy(func(e model.DomainEvent) bool {
		return e.Kind == model.EventOrderCreated && e.ResourceID == 99 && e.UserID == 7
	})).Return(nil)

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		Email:           "receipts@example.com",
	})

	assert.NoError(t, err)
	assert.False(t, out.Idempotent)
	assert.Equal(t, int64(99), out.OrderID)
	assert.Equal(t, int64(2500), out.SubtotalCents)
	assert.Equal(t, int64(200), out.TaxCents)
	assert.Equal(t, int64(500), out.ShippingCents)
	assert.Equal(t, int64(3200), out.TotalCents)

	f.orders.AssertExpectations(t)
	f.orderItems.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.events.AssertNumberOfCalls(t, "Create", 1)
}

func TestCheckout_TaxInclusiveCountry(t *testing.T) {
	//内税：taxは記録するが合計には足さない
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 417, ShippingCents: 400, PricesIncludeTax: true})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{}, false, nil)
	f.addresses.On("Create", mock.Anything, mock.Anything).Return(model.Address{ID: 31, Country: "GB"}, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.Anything).Return(nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	ship := validShipping()
	ship.Country = "gb"

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: ship})

	assert.NoError(t, err)
	assert.Equal(t, int64(417), out.TaxCents)
	assert.Equal(t, int64(2900), out.TotalCents) // 2500 + 400送料、税は加算しない
	assert.Equal(t, "GBP", out.Currency)
}

func TestCheckout_DiscountApplied(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	value := int64(500)
	f.discounts.On("FindByCode", mock.Anything, "SAVE5").Return(model.DiscountCode{
		ID: 3, Code: "SAVE5", Kind: model.DiscountKindFixed, ValueCents: &value,
	}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.DiscountCents == 500 &&
			o.TotalCents == 2900 && // 2500 - 500 + 200 + 500
			o.DiscountCodeID != nil && *o.DiscountCodeID == 3 &&
			o.DiscountCodeSnapshot == "SAVE5" &&
			o.DiscountValueCents != nil && *o.DiscountValueCents == 500
	})).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.Anything).Return(nil)
	f.discounts.On("IncrementUsageIfUnderLimit", mock.Anything, int64(3)).Return(true, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		DiscountCode:    " save5 ", //正規化してから照合する
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(500), out.DiscountCents)
	assert.Equal(t, int64(2900), out.TotalCents)

	f.orders.AssertExpectations(t)
	f.discounts.AssertExpectations(t)
	f.events.AssertNumberOfCalls(t, "Create", 2) //注文イベント＋割引イベント
}

func TestCheckout_StockRaceRollsBack(t *testing.T) {
	//事前チェックは通るが、条件付きUPDATEが0行＝他の注文に食われた
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil).Once()

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(false, nil)
	//ロールバック直前の在庫表示用の再読
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 1}, nil).Once()

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assertHTTPCode(t, err, http.StatusConflict, usecase.CodeStockConflict)

	he, _ := usecase.AsHTTPError(err)
	details, ok := he.Details.(map[string][]usecase.StockViolation)
	if assert.True(t, ok) {
		assert.Equal(t, []usecase.StockViolation{{ProductID: 1, Size: "M", Available: 1}}, details["violations"])
	}

	f.orderItems.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_DiscountRaceRollsBack(t *testing.T) {
	//事前チェックでは残っていたが、加算時に上限へ達していた
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	value := int64(500)
	limit := int64(100)
	f.discounts.On("FindByCode", mock.Anything, "SAVE5").Return(model.DiscountCode{
		ID: 3, Code: "SAVE5", Kind: model.DiscountKindFixed, ValueCents: &value,
		UsageLimit: &limit, TimesUsed: 99,
	}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.Anything).Return(nil)
	f.discounts.On("IncrementUsageIfUnderLimit", mock.Anything, int64(3)).Return(false, nil)

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		DiscountCode:    "SAVE5",
	})

	assertHTTPCode(t, err, http.StatusConflict, usecase.CodeDiscountExhausted)

	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_ReusesMatchingAddress(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 77}, true, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.ShippingAddressID == 77 && o.BillingAddressID == 77
	})).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.Anything).Return(nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assert.NoError(t, err)
	f.addresses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.orders.AssertExpectations(t)
}

func TestCheckout_ConcurrentSameKeyReturnsExisting(t *testing.T) {
	//並行リクエストが同じキーで先にコミット→INSERT失敗→ロールバック後にその注文を拾う
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	//トランザクション側の注文repoは別インスタンスにする：
	//INSERTが失敗したトランザクションの中では以降の文も全部失敗するので、
	//取り直しがトランザクション外のrepoで行われることを固定したい
	txOrders := new(OrderRepoMock)
	f.txm.Repos = &TxReposMock{
		orders:     txOrders,
		orderItems: f.orderItems,
		carts:      f.carts,
		cartLines:  f.cartLines,
		products:   f.products,
		variants:   f.variants,
		discounts:  f.discounts,
		addresses:  f.addresses,
		payments:   f.payments,
	}

	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "retry-key-123").Return(model.Order{}, false, nil).Once()

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	txOrders.On("Create", mock.Anything, mock.Anything).Return(int64(0), repo.ErrDuplicateKey)

	existing := model.Order{ID: 55, Status: model.OrderStatusPending, SubtotalCents: 2500, TaxCents: 200, ShippingCents: 500, TotalCents: 3200, Currency: "USD"}
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "retry-key-123").Return(existing, true, nil).Once()

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		IdempotencyKey:  "retry-key-123",
	})

	assert.NoError(t, err)
	assert.True(t, out.Idempotent)
	assert.Equal(t, int64(55), out.OrderID)

	//中断したトランザクションの中では読み直さない
	txOrders.AssertNotCalled(t, "FindByIdempotencyKey", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertExpectations(t)
	f.orderItems.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_NonDuplicateInsertErrorIs500(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "retry-key-123").Return(model.Order{}, false, nil).Once()

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset"))

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		IdempotencyKey:  "retry-key-123",
	})

	assertHTTPCode(t, err, http.StatusInternalServerError, usecase.CodeInternal)
}

func TestCheckout_FallbackLinesDropInvalid(t *testing.T) {
	//サーバー側カートが空→クライアントのスナップショットから組み立て、
	//通らない行は黙って落とす
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 0, ShippingCents: 500})

	f.carts.On("FindActiveByUserID", mock.Anything, int64(7)).Return(model.Cart{}, repo.ErrNotFound)

	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1000, IsActive: true}, nil)
	f.products.On("FindByID", mock.Anything, int64(99)).Return(model.Product{}, repo.ErrNotFound)
	f.products.On("FindByIDs", mock.Anything, []int64{1}).Return(map[int64]model.Product{
		1: {ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1000, IsActive: true},
	}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.SubtotalCents == 1000 && o.TotalCents == 1500
	})).Return(int64(99), nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 && items[0].ProductID == 1 && items[0].UnitPriceSnapshot == 1000
	})).Return(nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		Lines: []usecase.CheckoutLineInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 0},   //数量不正→落とす
			{ProductID: 99, Quantity: 1},  //存在しない→落とす
			{ProductID: 3, Quantity: 100}, //上限超過→落とす
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1000), out.SubtotalCents)

	//サイズ無しの明細は在庫減算の対象外
	f.variants.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orderItems.AssertExpectations(t)
}

func TestCheckout_FallbackLineStockShortIsConflict(t *testing.T) {
	//組み立てで落とすのは構造がおかしい行だけ。
	//在庫不足は黙って落とさず、違反としてまとめて返す
	f := newCheckoutFixture(usecase.RateQuote{})

	f.carts.On("FindActiveByUserID", mock.Anything, int64(7)).Return(model.Cart{}, repo.ErrNotFound)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1000, IsActive: true}, nil)
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 1}, nil)
	f.products.On("FindByIDs", mock.Anything, []int64{1}).Return(map[int64]model.Product{
		1: {ID: 1, Name: "Tee", SKU: "TEE-1", PriceCents: 1000, IsActive: true},
	}, nil)

	_, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{
		ShippingAddress: validShipping(),
		Lines:           []usecase.CheckoutLineInput{{ProductID: 1, Size: "M", Quantity: 3}},
	})

	assertHTTPCode(t, err, http.StatusConflict, usecase.CodeStockConflict)

	he, _ := usecase.AsHTTPError(err)
	details, ok := he.Details.(map[string][]usecase.StockViolation)
	if assert.True(t, ok) {
		assert.Equal(t, []usecase.StockViolation{{ProductID: 1, Size: "M", Available: 1}}, details["violations"])
	}
	f.txm.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestCheckout_EventFailureDoesNotFailCheckout(t *testing.T) {
	f := newCheckoutFixture(usecase.RateQuote{TaxCents: 200, ShippingCents: 500})

	f.stubCartWithLine()
	f.variants.On("FindByProductAndSize", mock.Anything, int64(1), "M").Return(model.SizeVariant{Stock: 5}, nil)

	f.txm.On("WithinTx", mock.Anything).Return(nil)
	f.addresses.On("FindMatch", mock.Anything, int64(7), mock.Anything).Return(model.Address{ID: 31}, true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(99), nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Name: "Tee", SKU: "TEE-1", IsActive: true}, nil)
	f.variants.On("DecreaseStockIfEnough", mock.Anything, int64(1), "M", int64(2)).Return(true, nil)
	f.orderItems.On("CreateBulk", mock.Anything, int64(99), mock.Anything).Return(nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(errors.New("events table unavailable"))

	out, err := f.uc.Checkout(context.Background(), 7, usecase.CheckoutInput{ShippingAddress: validShipping()})

	assert.NoError(t, err)
	assert.Equal(t, int64(99), out.OrderID)
}
