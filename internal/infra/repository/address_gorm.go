package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type addressGormRepository struct {
	db *gorm.DB
}

// DI
func NewAddressGormRepository(db *gorm.DB) repo.AddressRepository {
	return &addressGormRepository{db: db}
}

// 住所を作成
func (r *addressGormRepository) Create(ctx context.Context, address model.Address) (model.Address, error) {
	if err := r.db.WithContext(ctx).Create(&address).Error; err != nil {
		return model.Address{}, err
	}
	return address, nil
}

// 全フィールド一致で既存住所を探す。
// 同じ住所を2回送っても行が増えないようにするための照合
func (r *addressGormRepository) FindMatch(ctx context.Context, userID int64, a model.Address) (model.Address, bool, error) {
	var found model.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("full_name = ? AND line1 = ? AND line2 = ? AND city = ? AND region = ? AND postal_code = ? AND country = ? AND phone = ?",
			a.FullName, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.Phone).
		Order("id asc").
		First(&found).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Address{}, false, nil
	}
	if err != nil {
		return model.Address{}, false, err
	}
	return found, true, nil
}

// ユーザーの住所一覧を返す
func (r *addressGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var list []model.Address
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// 住所IDで1件取得
func (r *addressGormRepository) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var a model.Address
	err := r.db.WithContext(ctx).First(&a, addressID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Address{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Address{}, err
	}
	return a, nil
}
