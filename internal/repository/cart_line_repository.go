package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartLineRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error)
	// 同一商品・同一サイズは数量をプラス
	UpsertLine(ctx context.Context, cartID int64, productID int64, size string, addQty int64, unitPriceSnapshot int64) error
	UpdateQuantity(ctx context.Context, lineID int64, qty int64) error
	DeleteByID(ctx context.Context, lineID int64) error
	FindByID(ctx context.Context, lineID int64) (model.CartLine, error)
	IsOwnedByUser(ctx context.Context, lineID int64, userID int64) (bool, error)
}
