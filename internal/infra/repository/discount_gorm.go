package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type DiscountGormRepository struct {
	db *gorm.DB
}

// DI
func NewDiscountGormRepository(db *gorm.DB) *DiscountGormRepository {
	return &DiscountGormRepository{db: db}
}

func (r *DiscountGormRepository) FindByCode(ctx context.Context, code string) (model.DiscountCode, error) {
	var d model.DiscountCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DiscountCode{}, repo.ErrNotFound
	}
	if err != nil {
		return model.DiscountCode{}, err
	}
	return d, nil
}

// 上限未満のときだけ times_used を+1する。
// 同時チェックアウトが両方ここを通っても、片方は0行更新になって弾かれる
func (r *DiscountGormRepository) IncrementUsageIfUnderLimit(ctx context.Context, discountID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.DiscountCode{}).
		Where("id = ? AND (usage_limit IS NULL OR times_used < usage_limit)", discountID).
		Update("times_used", gorm.Expr("times_used + 1"))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}
