package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CheckoutUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	cartLines repo.CartLineRepository
	products  repo.ProductRepository
	variants  repo.VariantRepository
	discounts repo.DiscountRepository
	orders    repo.OrderRepository
	rates     RateCalculator
	events    repo.EventRepository
	log       *logrus.Logger
}

// DI
func NewCheckoutUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	cartLines repo.CartLineRepository,
	products repo.ProductRepository,
	variants repo.VariantRepository,
	discounts repo.DiscountRepository,
	orders repo.OrderRepository,
	rates RateCalculator,
	events repo.EventRepository,
	log *logrus.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		carts:     carts,
		cartLines: cartLines,
		products:  products,
		variants:  variants,
		discounts: discounts,
		orders:    orders,
		rates:     rates,
		events:    events,
		log:       log,
	}
}

// サーバー側カートが空のときだけ使うフォールバック明細。
type CheckoutLineInput struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutInput struct {
	ShippingAddress AddressInput
	BillingAddress  *AddressInput
	Email           string
	DiscountCode    string
	IdempotencyKey  string
	SaveAddress     bool
	Currency        string
	Lines           []CheckoutLineInput
}

type CheckoutOutput struct {
	OrderID       int64  `json:"order_id"`
	Status        string `json:"status"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	ShippingCents int64  `json:"shipping_cents"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	Idempotent    bool   `json:"idempotent"`
}

// 同一キーの並行リクエストが先にコミットしていた印。
// INSERTが失敗した時点でこのトランザクションは中断扱いなので、
// 既存注文の取り直しはロールバック後にトランザクション外で行う
var errIdempotencyKeyTaken = errors.New("idempotency key already used")

// 満たせない明細の内訳。全件まとめて返す
type StockViolation struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Available int64  `json:"available"`
}

// チェックアウト本体。
// 事前チェック（在庫・割引）は目安で、正しさの保証は
// トランザクション内の条件付きUPDATEが持つ。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	//キーは任意。指定されたら8〜100文字
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" && (len(key) < 8 || len(key) > 100) {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid idempotency_key")
	}

	ship, missing := normalizeAddress(in.ShippingAddress)
	if len(missing) > 0 {
		return CheckoutOutput{}, NewHTTPErrorWithDetails(
			http.StatusBadRequest, CodeInvalidAddress, "invalid shipping address",
			map[string][]string{"missing": missing},
		)
	}

	var bill *model.Address
	if in.BillingAddress != nil {
		b, missing := normalizeAddress(*in.BillingAddress)
		if len(missing) > 0 {
			return CheckoutOutput{}, NewHTTPErrorWithDetails(
				http.StatusBadRequest, CodeInvalidBillingAddress, "invalid billing address",
				map[string][]string{"missing": missing},
			)
		}
		bill = &b
	}

	//同じキーなら同じ結果（検証も課金も再実行しない）
	if key != "" {
		existing, found, err := u.orders.FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if found {
			return toCheckoutOutput(existing, true), nil
		}
	}

	lines, err := u.loadLines(ctx, userID, in.Lines)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if len(lines) == 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, CodeEmptyCart, "cart empty")
	}

	//在庫の事前チェック（違反は全件集める）
	subtotal, violations, err := u.validateStock(ctx, lines)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if len(violations) > 0 {
		return CheckoutOutput{}, NewHTTPErrorWithDetails(
			http.StatusConflict, CodeStockConflict, "insufficient stock",
			map[string][]StockViolation{"violations": violations},
		)
	}

	//割引
	var disc *DiscountApplication
	if code := NormalizeDiscountCode(in.DiscountCode); code != "" {
		d, err := EvaluateDiscount(ctx, u.discounts, code, subtotal, time.Now())
		if err != nil {
			return CheckoutOutput{}, err
		}
		disc = &d
	}

	var discountCents int64
	if disc != nil {
		discountCents = disc.AmountCents
	}

	//税・送料
	currency := resolveCurrency(in.Currency, ship.Country)

	var itemCount int64
	for _, l := range lines {
		itemCount += l.Quantity
	}

	quote, err := u.rates.Quote(ctx, RateRequest{
		SubtotalCents: subtotal,
		ItemCount:     itemCount,
		Country:       ship.Country,
		Currency:      currency,
	})
	if err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "rate calculation failed")
	}

	//内税の国ではtaxを記録するだけで合計には足さない
	additiveTax := quote.TaxCents
	if quote.PricesIncludeTax {
		additiveTax = 0
	}
	total := subtotal - discountCents + additiveTax + quote.ShippingCents

	var out CheckoutOutput

	//注文確定はひとつのトランザクション（全部成功か全部無し）
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		shipRow, err := resolveAddress(ctx, r.Addresses(), userID, ship, in.SaveAddress)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//請求先が無ければ配送先の行をそのまま使う
		billRow := shipRow
		if bill != nil {
			billRow, err = resolveAddress(ctx, r.Addresses(), userID, *bill, in.SaveAddress)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
		}

		now := time.Now()
		order := model.Order{
			UserID:            userID,
			Status:            model.OrderStatusPending,
			SubtotalCents:     subtotal,
			DiscountCents:     discountCents,
			TaxCents:          quote.TaxCents,
			ShippingCents:     quote.ShippingCents,
			TotalCents:        total,
			Currency:          currency,
			ShippingAddressID: shipRow.ID,
			BillingAddressID:  billRow.ID,
			Email:             strings.TrimSpace(in.Email),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}
		if disc != nil {
			order.DiscountCodeID = &disc.ID
			order.DiscountCodeSnapshot = disc.Code
			order.DiscountValueCents = disc.ValueCents
			order.DiscountPercent = disc.Percent
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			if key != "" && errors.Is(err, repo.ErrDuplicateKey) {
				return errIdempotencyKeyTaken
			}
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		order.ID = orderID

		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, err := r.Products().FindByID(ctx, l.ProductID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}

			//スナップショット（後から商品を編集しても過去の注文は変わらない）
			items = append(items, model.OrderItem{
				ProductID:         l.ProductID,
				NameSnapshot:      p.Name,
				SKUSnapshot:       p.SKU,
				Size:              l.Size,
				UnitPriceSnapshot: l.UnitPriceSnapshot,
				Quantity:          l.Quantity,
				CreatedAt:         now,
			})

			//サイズ在庫の減算。0行更新＝事前チェックとの間に他の注文が在庫を食った
			if l.Size != "" {
				ok, err := r.Variants().DecreaseStockIfEnough(ctx, l.ProductID, l.Size, l.Quantity)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
				}
				if !ok {
					return NewHTTPErrorWithDetails(
						http.StatusConflict, CodeStockConflict, "insufficient stock",
						map[string][]StockViolation{"violations": {{ProductID: l.ProductID, Size: l.Size, Available: u.currentStock(ctx, r, l.ProductID, l.Size)}}},
					)
				}
			}
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//割引の使用回数。0行更新＝並行トランザクションが上限まで使い切った
		if disc != nil {
			ok, err := r.Discounts().IncrementUsageIfUnderLimit(ctx, disc.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusConflict, CodeDiscountExhausted, "discount code exhausted")
			}
		}

		//決済プレースホルダ
		_, err = r.Payments().Create(ctx, model.PaymentRecord{
			OrderID:     orderID,
			Status:      model.PaymentStatusPending,
			AmountCents: total,
			Currency:    currency,
			Reference:   "pay_" + uuid.NewString(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		out = toCheckoutOutput(order, false)
		return nil
	})

	if err != nil {
		//並行リクエストが同じキーで勝った。ロールバック後にその注文を拾って同じ結果を返す
		if errors.Is(err, errIdempotencyKeyTaken) {
			existing, found, err2 := u.orders.FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found {
				return toCheckoutOutput(existing, true), nil
			}
			return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		return CheckoutOutput{}, err
	}

	//コミット後のイベントはベストエフォート（失敗してもチェックアウトは成功のまま）
	if !out.Idempotent {
		u.emitOrderEvents(ctx, userID, out, disc)
	}

	return out, nil
}

// サーバー側のACTIVEカートを読む。空ならクライアントのスナップショットから組み立て、
// 検証に通らない行は黙って落とす
func (u *CheckoutUsecase) loadLines(ctx context.Context, userID int64, fallback []CheckoutLineInput) ([]model.CartLine, error) {
	cart, err := u.carts.FindActiveByUserID(ctx, userID)
	if err != nil && err != repo.ErrNotFound {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err == nil {
		lines, err := u.cartLines.ListByCartID(ctx, cart.ID)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if len(lines) > 0 {
			return lines, nil
		}
	}

	return u.rebuildFromSnapshot(ctx, fallback)
}

func (u *CheckoutUsecase) rebuildFromSnapshot(ctx context.Context, fallback []CheckoutLineInput) ([]model.CartLine, error) {
	lines := make([]model.CartLine, 0, len(fallback))
	for _, f := range fallback {
		if f.Quantity < 1 || f.Quantity > 99 {
			continue
		}

		p, err := u.products.FindByID(ctx, f.ProductID)
		if err == repo.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !p.IsActive {
			continue
		}

		size := strings.TrimSpace(f.Size)
		if size != "" {
			if _, err := u.variants.FindByProductAndSize(ctx, f.ProductID, size); err != nil {
				if err == repo.ErrNotFound {
					continue
				}
				return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
		}

		lines = append(lines, model.CartLine{
			ProductID:         f.ProductID,
			Size:              size,
			Quantity:          f.Quantity,
			UnitPriceSnapshot: p.PriceCents,
		})
	}
	return lines, nil
}

// 1パスで全明細を見て、違反は全部集める（最初の1件で止めない）。
// 削除済み・非公開の商品は在庫0扱い。サイズ無しの明細は在庫制約なし。
// 違反があるとき小計は捨てる前提（クライアントは信用しない）
func (u *CheckoutUsecase) validateStock(ctx context.Context, lines []model.CartLine) (int64, []StockViolation, error) {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := u.products.FindByIDs(ctx, ids)
	if err != nil {
		return 0, nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	var subtotal int64
	var violations []StockViolation

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsActive {
			violations = append(violations, StockViolation{ProductID: l.ProductID, Size: l.Size, Available: 0})
			continue
		}

		if l.Size != "" {
			v, err := u.variants.FindByProductAndSize(ctx, l.ProductID, l.Size)
			if err == repo.ErrNotFound {
				violations = append(violations, StockViolation{ProductID: l.ProductID, Size: l.Size, Available: 0})
				continue
			}
			if err != nil {
				return 0, nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if v.Stock < l.Quantity {
				violations = append(violations, StockViolation{ProductID: l.ProductID, Size: l.Size, Available: v.Stock})
				continue
			}
		}

		subtotal += l.UnitPriceSnapshot * l.Quantity
	}

	return subtotal, violations, nil
}

// ロールバック直前の在庫表示用。読めなければ0を返すだけ
func (u *CheckoutUsecase) currentStock(ctx context.Context, r repo.TxRepos, productID int64, size string) int64 {
	v, err := r.Variants().FindByProductAndSize(ctx, productID, size)
	if err != nil {
		return 0
	}
	return v.Stock
}

func (u *CheckoutUsecase) emitOrderEvents(ctx context.Context, userID int64, out CheckoutOutput, disc *DiscountApplication) {
	payload, _ := json.Marshal(out)
	if err := u.events.Create(ctx, model.DomainEvent{
		EventID:      uuid.NewString(),
		Kind:         model.EventOrderCreated,
		UserID:       userID,
		ResourceType: model.EventResourceOrder,
		ResourceID:   out.OrderID,
		PayloadJSON:  string(payload),
		CreatedAt:    time.Now(),
	}); err != nil {
		u.log.WithError(err).WithField("order_id", out.OrderID).Warn("order created event not recorded")
	}

	if disc == nil {
		return
	}

	discPayload, _ := json.Marshal(map[string]any{
		"order_id":       out.OrderID,
		"code":           disc.Code,
		"discount_cents": disc.AmountCents,
	})
	if err := u.events.Create(ctx, model.DomainEvent{
		EventID:      uuid.NewString(),
		Kind:         model.EventDiscountApplied,
		UserID:       userID,
		ResourceType: model.EventResourceDiscount,
		ResourceID:   disc.ID,
		PayloadJSON:  string(discPayload),
		CreatedAt:    time.Now(),
	}); err != nil {
		u.log.WithError(err).WithField("order_id", out.OrderID).Warn("discount applied event not recorded")
	}
}

func toCheckoutOutput(o model.Order, idempotent bool) CheckoutOutput {
	return CheckoutOutput{
		OrderID:       o.ID,
		Status:        string(o.Status),
		SubtotalCents: o.SubtotalCents,
		DiscountCents: o.DiscountCents,
		TaxCents:      o.TaxCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		Currency:      o.Currency,
		Idempotent:    idempotent,
	}
}
