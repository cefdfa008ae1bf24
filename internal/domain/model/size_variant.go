package model

import "time"

// サイズ別の在庫カウンタ。
// stockは条件付きUPDATEでのみ減算する（負にならない）。
type SizeVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_variant_product_size" json:"product_id"`
	Size      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_variant_product_size" json:"size"`
	Stock     int64     `gorm:"not null" json:"stock"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
