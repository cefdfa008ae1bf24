package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, record model.PaymentRecord) (int64, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error)
}
