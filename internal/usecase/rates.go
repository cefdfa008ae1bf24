package usecase

import "context"

// 税・送料の見積もり依頼。
type RateRequest struct {
	SubtotalCents int64
	ItemCount     int64
	Country       string
	Currency      string
}

// 見積もり結果。
// PricesIncludeTaxがtrueの国（内税）では、taxは記録するだけで
// 合計への加算には含めない。ここを間違えると二重課税か取りこぼしになる。
type RateQuote struct {
	TaxCents         int64
	ShippingCents    int64
	PricesIncludeTax bool
}

// 外部の料率計算への約束。純粋関数として扱う
type RateCalculator interface {
	Quote(ctx context.Context, req RateRequest) (RateQuote, error)
}
