package model

import "time"

// 配送先・請求先住所。
// UserIDがnilの行は住所帳に保存しない「非所有」の住所
// （チェックアウトでsave_addressを指定しなかった場合）。
type Address struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID *int64 `gorm:"index" json:"user_id,omitempty"`

	//宛名
	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`

	//番地など
	Line1 string `gorm:"type:varchar(255);not null" json:"line1"`

	//建物名など
	Line2 string `gorm:"type:varchar(255)" json:"line2"`

	//市区町村
	City string `gorm:"type:varchar(255);not null" json:"city"`

	//州・都道府県
	Region string `gorm:"type:varchar(100)" json:"region"`

	//郵便番号
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`

	//国コード（ISO 3166-1 alpha-2）
	Country string `gorm:"type:varchar(2);not null" json:"country"`

	//電話番号
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
