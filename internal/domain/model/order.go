package model

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusShipped  OrderStatus = "SHIPPED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// 注文。このコアはPENDINGで作るところまで。
// 金額は全てマイナー通貨単位。total = subtotal - discount + tax(外税のみ) + shipping。
// 割引はスナップショットで持つ（後からコードを編集しても過去の注文は変わらない）。
type Order struct {
	ID     int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64       `gorm:"not null;index;uniqueIndex:idx_orders_user_idem" json:"user_id"`
	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	SubtotalCents int64  `gorm:"not null" json:"subtotal_cents"`
	DiscountCents int64  `gorm:"not null" json:"discount_cents"`
	TaxCents      int64  `gorm:"not null" json:"tax_cents"`
	ShippingCents int64  `gorm:"not null" json:"shipping_cents"`
	TotalCents    int64  `gorm:"not null" json:"total_cents"`
	Currency      string `gorm:"type:varchar(3);not null" json:"currency"`

	ShippingAddressID int64 `gorm:"not null" json:"shipping_address_id"`
	BillingAddressID  int64 `gorm:"not null" json:"billing_address_id"`

	//領収メールの宛先上書き（空ならアカウントのメール）
	Email string `gorm:"type:varchar(255)" json:"email,omitempty"`

	//割引スナップショット（未適用なら全てゼロ値）
	DiscountCodeID       *int64 `gorm:"index" json:"discount_code_id,omitempty"`
	DiscountCodeSnapshot string `gorm:"type:varchar(50)" json:"discount_code_snapshot,omitempty"`
	DiscountValueCents   *int64 `json:"discount_value_cents,omitempty"`
	DiscountPercent      *int64 `json:"discount_percent,omitempty"`

	//キー未指定の注文は重複排除しない（NULLはユニーク制約に掛からない）
	IdempotencyKey *string `gorm:"type:varchar(100);uniqueIndex:idx_orders_user_idem" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
