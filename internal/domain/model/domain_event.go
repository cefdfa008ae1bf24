package model

import "time"

// 監査・通知向けのドメインイベント種別。
type EventKind string

const (
	EventOrderCreated    EventKind = "ORDER_CREATED"
	EventDiscountApplied EventKind = "DISCOUNT_APPLIED"
)

// 何に対するイベントか
type EventResourceType string

const (
	EventResourceOrder    EventResourceType = "order"
	EventResourceDiscount EventResourceType = "discount_code"
)

// コミット後にベストエフォートで残すドメインイベント。
// 書き込み失敗はログに残すだけでチェックアウトを失敗させない。
type DomainEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//イベントの一意な識別子（UUID）
	EventID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`

	Kind EventKind `gorm:"type:varchar(50);not null;index" json:"kind"`

	//起点となったユーザー
	UserID int64 `gorm:"not null;index" json:"user_id"`

	ResourceType EventResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する
	PayloadJSON string `gorm:"type:text" json:"payload_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
