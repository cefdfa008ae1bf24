package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type ProductRepository interface {
	//ソフト削除済みはErrNotFound
	FindByID(ctx context.Context, productID int64) (model.Product, error)
	FindByIDs(ctx context.Context, productIDs []int64) (map[int64]model.Product, error)
}
