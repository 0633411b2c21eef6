package repository

import (
	"context"
	"strings"

	"canteen/internal/model"

	"gorm.io/gorm"
)

type OrderDetailRepository struct {
	db *gorm.DB
}

func NewOrderDetailRepository(db *gorm.DB) *OrderDetailRepository {
	return &OrderDetailRepository{db: db}
}

func (r *OrderDetailRepository) CreateBatch(ctx context.Context, tx *gorm.DB, details []*model.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(&details).Error
}

func (r *OrderDetailRepository) ListByOrderIDs(ctx context.Context, tx *gorm.DB, orderIDs []string) ([]*model.OrderDetail, error) {
	if tx == nil {
		tx = r.db
	}
	var details []*model.OrderDetail
	if len(orderIDs) == 0 {
		return details, nil
	}
	err := tx.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("order_id ASC, dish_id ASC").
		Find(&details).Error
	return details, err
}

func (r *OrderDetailRepository) DeleteByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Delete(&model.OrderDetail{})
	return result.RowsAffected, result.Error
}
