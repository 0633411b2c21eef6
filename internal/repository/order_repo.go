package repository

import (
	"context"
	"errors"
	"strings"

	"canteen/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	if tx == nil {
		tx = r.db
	}
	var order model.Order
	err := tx.WithContext(ctx).Where("order_id = ?", strings.TrimSpace(orderID)).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderIDForUpdate 行锁读取，必须在事务内调用
func (r *OrderRepository) GetByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// OrderIDsWithPrefix 某档口某天已有的订单编号
// LIKE 的通配符可能多匹配，调用方按前缀精确过滤
func (r *OrderRepository) OrderIDsWithPrefix(ctx context.Context, tx *gorm.DB, prefix string) ([]string, error) {
	if tx == nil {
		tx = r.db
	}
	var ids []string
	err := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id LIKE ?", prefix+"%").
		Pluck("order_id", &ids).Error
	return ids, err
}

// UpdateStatus 带旧状态条件的状态更新，并发下只有一个请求能成功
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id = ? AND status = ?", strings.TrimSpace(orderID), fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// Updates 部分字段更新
// MySQL 在值未变化时 RowsAffected 为 0，存在性由调用方先行校验
func (r *OrderRepository) Updates(ctx context.Context, tx *gorm.DB, orderID string, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Updates(updates).Error
}

func (r *OrderRepository) Delete(ctx context.Context, tx *gorm.DB, orderID string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Delete(&model.Order{})
	return result.RowsAffected, result.Error
}

// Latest 最新插入的一条订单，没有订单时返回 nil
func (r *OrderRepository) Latest(ctx context.Context) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Order("id DESC").Limit(1).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) ListByStudentID(ctx context.Context, studentID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("student_id = ?", strings.TrimSpace(studentID)).
		Order("order_time DESC").
		Find(&orders).Error
	return orders, err
}

// ListByMerchantID status 为空时不过滤状态
func (r *OrderRepository) ListByMerchantID(ctx context.Context, merchantID, status string) ([]*model.Order, error) {
	var orders []*model.Order
	query := r.db.WithContext(ctx).Where("merchant_id = ?", strings.TrimSpace(merchantID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("order_time DESC").Find(&orders).Error
	return orders, err
}
