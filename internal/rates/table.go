package rates

import (
	"context"

	"storefront/internal/usecase"
)

// 国ごとの料率。taxはベーシスポイント（800 = 8%）。
type countryRate struct {
	TaxBps           int64
	PricesIncludeTax bool
	ShippingCents    int64
	//この小計以上は送料無料（0なら無料にしない）
	FreeShippingOverCents int64
}

var defaultTable = map[string]countryRate{
	"US": {TaxBps: 800, PricesIncludeTax: false, ShippingCents: 500, FreeShippingOverCents: 10000},
	"CA": {TaxBps: 1300, PricesIncludeTax: false, ShippingCents: 700, FreeShippingOverCents: 12000},
	"GB": {TaxBps: 2000, PricesIncludeTax: true, ShippingCents: 450, FreeShippingOverCents: 8000},
	"DE": {TaxBps: 1900, PricesIncludeTax: true, ShippingCents: 490, FreeShippingOverCents: 8000},
	"FR": {TaxBps: 2000, PricesIncludeTax: true, ShippingCents: 490, FreeShippingOverCents: 8000},
	"JP": {TaxBps: 1000, PricesIncludeTax: true, ShippingCents: 600, FreeShippingOverCents: 10000},
	"AU": {TaxBps: 1000, PricesIncludeTax: false, ShippingCents: 900, FreeShippingOverCents: 15000},
}

var fallbackRate = countryRate{TaxBps: 0, PricesIncludeTax: false, ShippingCents: 1500}

// TableCalculator はテーブル参照だけの決定的な料率計算。
// 外部の税API相当の差し替え口として同じインターフェースを満たす。
type TableCalculator struct {
	table map[string]countryRate
}

func NewTableCalculator() *TableCalculator {
	return &TableCalculator{table: defaultTable}
}

func (c *TableCalculator) Quote(ctx context.Context, req usecase.RateRequest) (usecase.RateQuote, error) {
	r, ok := c.table[req.Country]
	if !ok {
		r = fallbackRate
	}

	//税は切り捨て
	tax := req.SubtotalCents * r.TaxBps / 10000

	shipping := r.ShippingCents
	if r.FreeShippingOverCents > 0 && req.SubtotalCents >= r.FreeShippingOverCents {
		shipping = 0
	}
	if req.ItemCount == 0 {
		shipping = 0
	}

	return usecase.RateQuote{
		TaxCents:         tax,
		ShippingCents:    shipping,
		PricesIncludeTax: r.PricesIncludeTax,
	}, nil
}
