package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type DiscountRepository interface {
	//大文字に正規化済みのコードで1件取得
	FindByCode(ctx context.Context, code string) (model.DiscountCode, error)

	// 上限未満のときだけ加算（条件付きUPDATE、0行ならfalse）。
	// 事前チェックは目安でしかなく、正しさの保証はこちら
	IncrementUsageIfUnderLimit(ctx context.Context, discountID int64) (bool, error)
}
