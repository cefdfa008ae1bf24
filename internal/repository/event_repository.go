package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ドメインイベントの書き込み窓口。
// コミット後のベストエフォート書き込みにしか使わない。
type EventRepository interface {
	Create(ctx context.Context, event model.DomainEvent) error
	List(ctx context.Context, filter EventFilter) ([]model.DomainEvent, error)
}

type EventFilter struct {
	Kind       string
	UserID     *int64
	ResourceID *int64
	Limit      int
}
