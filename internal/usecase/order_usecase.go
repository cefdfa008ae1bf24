package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 注文の参照系とキャンセル。作成はCheckoutUsecaseが持つ。
type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	payments   repo.PaymentRepository
	addresses  repo.AddressRepository
	events     repo.EventRepository
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	payments repo.PaymentRepository,
	addresses repo.AddressRepository,
	events repo.EventRepository,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		payments:   payments,
		addresses:  addresses,
		events:     events,
	}
}

type OrderItemOutput struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Size       string `json:"size,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	Status          string            `json:"status"`
	SubtotalCents   int64             `json:"subtotal_cents"`
	DiscountCents   int64             `json:"discount_cents"`
	TaxCents        int64             `json:"tax_cents"`
	ShippingCents   int64             `json:"shipping_cents"`
	TotalCents      int64             `json:"total_cents"`
	Currency        string            `json:"currency"`
	PaymentStatus   string            `json:"payment_status,omitempty"`
	ShippingAddress *AddressOutput    `json:"shipping_address,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

type OrderEventOutput struct {
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	//ページングはまず固定で取る
	orders, _, err := u.orders.ListByUserID(ctx, userID, 1, 50)
	if err != nil {
		return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		outs = append(outs, toOrderOutput(o, items, "", nil))
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid id")
	}

	o, err := u.findOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return OrderOutput{}, err
	}

	items, err := u.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	paymentStatus := ""
	if p, err := u.payments.FindByOrderID(ctx, orderID); err == nil {
		paymentStatus = string(p.Status)
	}

	//配送先はベストエフォートで同梱（読めなくても注文自体は返す）
	var ship *AddressOutput
	if a, err := u.addresses.FindByID(ctx, o.ShippingAddressID); err == nil {
		out := toAddressOutput(a)
		ship = &out
	}

	return toOrderOutput(o, items, paymentStatus, ship), nil
}

// CancelMyOrder はPENDINGの注文をキャンセルして在庫を戻す。
// ステータス遷移は条件付きUPDATEで守る（支払い済みへ進んだ注文は弾く）。
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid id")
	}

	o, err := u.findOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return OrderOutput{}, err
	}

	var items []model.OrderItem

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().UpdateStatusIfCurrent(ctx, orderID, model.OrderStatusPending, model.OrderStatusCanceled)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			//0行更新＝既にPENDINGではない
			return NewHTTPError(http.StatusConflict, CodeOrderNotCancelable, "order is not cancelable")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//サイズ在庫を戻す（サイズ無しの明細は対象外）
		for _, it := range items {
			if it.Size == "" {
				continue
			}
			if err := r.Variants().IncreaseStock(ctx, it.ProductID, it.Size, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
		}
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	o.Status = model.OrderStatusCanceled
	return toOrderOutput(o, items, "", nil), nil
}

// ListOrderEvents は注文に紐づくドメインイベントを返す。
func (u *OrderUsecase) ListOrderEvents(ctx context.Context, userID int64, orderID int64) ([]OrderEventOutput, error) {
	if userID <= 0 {
		return []OrderEventOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if orderID <= 0 {
		return []OrderEventOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid id")
	}

	//所有チェック（他人の注文は404）
	if _, err := u.findOwnedOrder(ctx, userID, orderID); err != nil {
		return []OrderEventOutput{}, err
	}

	events, err := u.events.List(ctx, repo.EventFilter{
		Kind:       string(model.EventOrderCreated),
		ResourceID: &orderID,
		Limit:      50,
	})
	if err != nil {
		return []OrderEventOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	outs := make([]OrderEventOutput, 0, len(events))
	for _, e := range events {
		outs = append(outs, OrderEventOutput{
			Kind:      string(e.Kind),
			Payload:   e.PayloadJSON,
			CreatedAt: e.CreatedAt,
		})
	}
	return outs, nil
}

// 所有者本人の注文だけ返す。他人の注文は「存在しない扱い」にする
func (u *OrderUsecase) findOwnedOrder(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	o, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return model.Order{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if o.UserID != userID {
		return model.Order{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	return o, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem, paymentStatus string, ship *AddressOutput) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			Name:       it.NameSnapshot,
			SKU:        it.SKUSnapshot,
			Size:       it.Size,
			PriceCents: it.UnitPriceSnapshot,
			Quantity:   it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		Status:          string(o.Status),
		SubtotalCents:   o.SubtotalCents,
		DiscountCents:   o.DiscountCents,
		TaxCents:        o.TaxCents,
		ShippingCents:   o.ShippingCents,
		TotalCents:      o.TotalCents,
		Currency:        o.Currency,
		PaymentStatus:   paymentStatus,
		ShippingAddress: ship,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
