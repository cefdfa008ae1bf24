package model

import "time"

// 注文明細。商品名・SKU・単価は確定時点で凍結する。
type OrderItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64     `gorm:"not null;index" json:"order_id"`
	ProductID         int64     `gorm:"not null;index" json:"product_id"`
	NameSnapshot      string    `gorm:"type:varchar(255);not null" json:"name_snapshot"`
	SKUSnapshot       string    `gorm:"type:varchar(100);not null" json:"sku_snapshot"`
	Size              string    `gorm:"type:varchar(20)" json:"size"`
	UnitPriceSnapshot int64     `gorm:"not null" json:"unit_price_snapshot"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
