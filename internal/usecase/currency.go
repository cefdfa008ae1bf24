package usecase

import "strings"

// 国コード→通貨の対応。載っていない国はUSD
var currencyByCountry = map[string]string{
	"US": "USD",
	"CA": "CAD",
	"GB": "GBP",
	"AU": "AUD",
	"JP": "JPY",
	"DE": "EUR",
	"FR": "EUR",
	"IT": "EUR",
	"ES": "EUR",
	"NL": "EUR",
	"BE": "EUR",
	"AT": "EUR",
	"IE": "EUR",
	"PT": "EUR",
	"FI": "EUR",
}

// クライアントの選択を優先し、無ければ配送先の国から決める
func resolveCurrency(preferred string, country string) string {
	p := strings.ToUpper(strings.TrimSpace(preferred))
	if len(p) == 3 {
		return p
	}
	if c, ok := currencyByCountry[strings.ToUpper(country)]; ok {
		return c
	}
	return "USD"
}
