package model

import "time"

type DiscountKind string

const (
	DiscountKindFixed   DiscountKind = "FIXED"
	DiscountKindPercent DiscountKind = "PERCENT"
)

// 割引コード。Codeは大文字で保存する。
// TimesUsedは条件付きUPDATEでのみ加算し、UsageLimitを超えない。
type DiscountCode struct {
	ID   int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Code string       `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Kind DiscountKind `gorm:"type:varchar(10);not null" json:"kind"`

	//FIXEDのとき
	ValueCents *int64 `json:"value_cents,omitempty"`

	//PERCENTのとき（0〜100）
	Percent *int64 `json:"percent,omitempty"`

	//適用に必要な最低小計
	MinSubtotalCents *int64 `json:"min_subtotal_cents,omitempty"`

	//有効期間（どちらもnil可）
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	//使用回数の上限（nilなら無制限）
	UsageLimit *int64 `json:"usage_limit,omitempty"`
	TimesUsed  int64  `gorm:"not null;default:0" json:"times_used"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
