package usecase

import (
	"errors"
	"fmt"
)

// クライアントが分岐に使う機械可読コード
const (
	CodeUnauthenticated       = "unauthenticated"
	CodeRateLimited           = "rate_limited"
	CodeInvalidPayload        = "invalid_payload"
	CodeEmptyCart             = "empty_cart"
	CodeStockConflict         = "stock_conflict"
	CodeInvalidAddress        = "invalid_address"
	CodeInvalidBillingAddress = "invalid_billing_address"
	CodeInvalidDiscount       = "invalid_discount"
	CodeDiscountMinSubtotal   = "discount_min_subtotal"
	CodeDiscountExhausted     = "discount_exhausted"
	CodeOrderNotCancelable    = "order_not_cancelable"
	CodeNotFound              = "not_found"
	CodeInternal              = "internal_error"
)

// HTTPErrorはステータス・コード・詳細をまとめて運ぶ。
// Detailsは在庫違反リストなどの構造化データ（無ければnil）。
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func NewHTTPErrorWithDetails(status int, code string, message string, details any) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
