package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type CartLineGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartLineGormRepository(db *gorm.DB) *CartLineGormRepository {
	return &CartLineGormRepository{db: db}
}

func (r *CartLineGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&lines).Error
	if err != nil {
		return []model.CartLine{}, err
	}
	return lines, nil
}

// 同一商品・同一サイズの行があれば数量を加算、無ければ作成
func (r *CartLineGormRepository) UpsertLine(ctx context.Context, cartID int64, productID int64, size string, addQty int64, unitPriceSnapshot int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line model.CartLine
		err := tx.
			Where("cart_id = ? AND product_id = ? AND size = ?", cartID, productID, size).
			First(&line).Error

		if err == nil {
			res := tx.Model(&model.CartLine{}).
				Where("id = ?", line.ID).
				Update("quantity", gorm.Expr("quantity + ?", addQty))
			if res.Error != nil {
				return res.Error
			}
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		return tx.Create(&model.CartLine{
			CartID:            cartID,
			ProductID:         productID,
			Size:              size,
			Quantity:          addQty,
			UnitPriceSnapshot: unitPriceSnapshot,
			CreatedAt:         now,
			UpdatedAt:         now,
		}).Error
	})
}

func (r *CartLineGormRepository) UpdateQuantity(ctx context.Context, lineID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartLineGormRepository) DeleteByID(ctx context.Context, lineID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&model.CartLine{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartLineGormRepository) FindByID(ctx context.Context, lineID int64) (model.CartLine, error) {
	var line model.CartLine
	err := r.db.WithContext(ctx).First(&line, lineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartLine{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartLine{}, err
	}
	return line, nil
}

// その明細がそのユーザーのカートのものか
func (r *CartLineGormRepository) IsOwnedByUser(ctx context.Context, lineID int64, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("cart_lines.id = ? AND carts.user_id = ?", lineID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 1, nil
}
