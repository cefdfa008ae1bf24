package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type EventGormRepository struct {
	db *gorm.DB
}

// DI
func NewEventGormRepository(db *gorm.DB) *EventGormRepository {
	return &EventGormRepository{db: db}
}

func (r *EventGormRepository) Create(ctx context.Context, event model.DomainEvent) error {
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return err
	}
	return nil
}

func (r *EventGormRepository) List(ctx context.Context, f repo.EventFilter) ([]model.DomainEvent, error) {
	q := r.db.WithContext(ctx).Model(&model.DomainEvent{})

	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ResourceID != nil {
		q = q.Where("resource_id = ?", *f.ResourceID)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var events []model.DomainEvent
	if err := q.Order("id desc").Limit(limit).Find(&events).Error; err != nil {
		return []model.DomainEvent{}, err
	}
	return events, nil
}
