package repository

import (
	"context"
	"errors"
	"strings"

	"canteen/internal/model"

	"gorm.io/gorm"
)

var (
	ErrMerchantNotFound = errors.New("商户不存在")
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) GetByID(ctx context.Context, tx *gorm.DB, merchantID string) (*model.Merchant, error) {
	if tx == nil {
		tx = r.db
	}
	var merchant model.Merchant
	err := tx.WithContext(ctx).Where("merchant_id = ?", strings.TrimSpace(merchantID)).First(&merchant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return &merchant, nil
}

func (r *MerchantRepository) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Merchant, error) {
	if tx == nil {
		tx = r.db
	}
	result := make(map[string]*model.Merchant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var merchants []*model.Merchant
	if err := tx.WithContext(ctx).Where("merchant_id IN ?", ids).Find(&merchants).Error; err != nil {
		return nil, err
	}
	for _, m := range merchants {
		result[strings.TrimSpace(m.MerchantID)] = m
	}
	return result, nil
}

// DishesByIDs 按菜品编号批量查询
func (r *MerchantRepository) DishesByIDs(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Dish, error) {
	if tx == nil {
		tx = r.db
	}
	result := make(map[string]*model.Dish, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var dishes []*model.Dish
	if err := tx.WithContext(ctx).Where("dish_id IN ?", ids).Find(&dishes).Error; err != nil {
		return nil, err
	}
	for _, d := range dishes {
		result[strings.TrimSpace(d.DishID)] = d
	}
	return result, nil
}

func (r *MerchantRepository) ListStock(ctx context.Context, merchantID string) ([]*model.Stock, error) {
	var stocks []*model.Stock
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", strings.TrimSpace(merchantID)).
		Order("stock_id ASC").
		Find(&stocks).Error
	return stocks, err
}
