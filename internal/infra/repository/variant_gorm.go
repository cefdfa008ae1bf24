package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type VariantGormRepository struct {
	db *gorm.DB
}

// DI
func NewVariantGormRepository(db *gorm.DB) *VariantGormRepository {
	return &VariantGormRepository{db: db}
}

func (r *VariantGormRepository) FindByProductAndSize(ctx context.Context, productID int64, size string) (model.SizeVariant, error) {
	var v model.SizeVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ?", productID, size).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SizeVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.SizeVariant{}, err
	}
	return v, nil
}

func (r *VariantGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.SizeVariant, error) {
	var list []model.SizeVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id asc").
		Find(&list).Error
	if err != nil {
		return []model.SizeVariant{}, err
	}
	return list, nil
}

// 在庫が足りるときだけ減らす。
// 事前チェック後に他の注文が在庫を食っていても、ここで必ず弾ける
func (r *VariantGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, size string, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SizeVariant{}).
		Where("product_id = ? AND size = ? AND stock >= ?", productID, size, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル）
func (r *VariantGormRepository) IncreaseStock(ctx context.Context, productID int64, size string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.SizeVariant{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
