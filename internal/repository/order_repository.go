package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

// 一意制約違反（同一ユーザー・同一idempotency_key）
var ErrDuplicateKey = errors.New("duplicate key")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	//一意制約に当たったらErrDuplicateKeyを返す
	Create(ctx context.Context, order model.Order) (int64, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	// 現在のステータスが一致するときだけ遷移させる（条件付きUPDATE、0行ならfalse）
	UpdateStatusIfCurrent(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error)
}
