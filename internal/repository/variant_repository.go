package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type VariantRepository interface {
	FindByProductAndSize(ctx context.Context, productID int64, size string) (model.SizeVariant, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.SizeVariant, error)

	// 在庫が足りるときだけ減算（条件付きUPDATE、0行ならfalse）
	DecreaseStockIfEnough(ctx context.Context, productID int64, size string, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, size string, qty int64) error
}
