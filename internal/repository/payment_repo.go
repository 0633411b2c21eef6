package repository

import (
	"context"
	"strings"
	"sync"

	"canteen/internal/model"

	"gorm.io/gorm"
)

// PaymentRepository 支付记录
// 老库的支付表叫 PayMentMethod，新库叫 payment。首次访问时探测一次：
// payment 存在用 payment，否则有 PayMentMethod 就用它，都没有仍用 payment。
type PaymentRepository struct {
	db *gorm.DB

	mu    sync.Mutex
	table string
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Table 当前使用的支付表名，事务内调用时用同一个连接探测
func (r *PaymentRepository) Table(ctx context.Context, tx *gorm.DB) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table != "" {
		return r.table
	}

	if tx == nil {
		tx = r.db
	}
	migrator := tx.WithContext(ctx).Migrator()
	switch {
	case migrator.HasTable(model.PaymentTable):
		r.table = model.PaymentTable
	case migrator.HasTable(model.LegacyPaymentTable):
		r.table = model.LegacyPaymentTable
	default:
		// 不缓存，等迁移完成后再探测
		return model.PaymentTable
	}
	return r.table
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if tx == nil {
		tx = r.db
	}
	table := r.Table(ctx, tx)
	return tx.WithContext(ctx).Table(table).Create(payment).Error
}

func (r *PaymentRepository) ListByOrderID(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.Payment, error) {
	if tx == nil {
		tx = r.db
	}
	table := r.Table(ctx, tx)
	var payments []*model.Payment
	err := tx.WithContext(ctx).
		Table(table).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Order("pay_time ASC").
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) CountByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	table := r.Table(ctx, tx)
	var count int64
	err := tx.WithContext(ctx).
		Table(table).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Count(&count).Error
	return count, err
}

func (r *PaymentRepository) DeleteByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	table := r.Table(ctx, tx)
	result := tx.WithContext(ctx).
		Table(table).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Delete(&model.Payment{})
	return result.RowsAffected, result.Error
}
