package repository

import (
	"context"
	"errors"
	"strings"

	"canteen/internal/model"

	"gorm.io/gorm"
)

type PointRecordRepository struct {
	db *gorm.DB
}

func NewPointRecordRepository(db *gorm.DB) *PointRecordRepository {
	return &PointRecordRepository{db: db}
}

func (r *PointRecordRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PointRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

// Latest 最新一条积分流水，没有记录时返回 nil
func (r *PointRecordRepository) Latest(ctx context.Context) (*model.PointRecord, error) {
	var record model.PointRecord
	err := r.db.WithContext(ctx).Order("record_id DESC").Limit(1).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SumByOrderID 某订单获得的积分，没有流水时 found 为 false
func (r *PointRecordRepository) SumByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (total int64, found bool, err error) {
	if tx == nil {
		tx = r.db
	}
	var row struct {
		Total int64
		Cnt   int64
	}
	err = tx.WithContext(ctx).
		Model(&model.PointRecord{}).
		Select("COALESCE(SUM(points), 0) AS total, COUNT(*) AS cnt").
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Scan(&row).Error
	if err != nil {
		return 0, false, err
	}
	return row.Total, row.Cnt > 0, nil
}

func (r *PointRecordRepository) ListByStudentID(ctx context.Context, studentID string) ([]*model.PointRecord, error) {
	var records []*model.PointRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ?", strings.TrimSpace(studentID)).
		Order("record_id DESC").
		Find(&records).Error
	return records, err
}
