package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// 決済プレースホルダ。注文確定と同時に1件作る（キャプチャは別コンポーネント）。
type PaymentRecord struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64         `gorm:"not null;uniqueIndex" json:"order_id"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null" json:"status"`
	AmountCents int64         `gorm:"not null" json:"amount_cents"`
	Currency    string        `gorm:"type:varchar(3);not null" json:"currency"`
	Reference   string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
