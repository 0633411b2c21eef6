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
	ErrStudentNotFound = errors.New("学生不存在")
)

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) Create(ctx context.Context, tx *gorm.DB, student *model.Student) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(student).Error
}

func (r *StudentRepository) GetByID(ctx context.Context, tx *gorm.DB, studentID string) (*model.Student, error) {
	if tx == nil {
		tx = r.db
	}
	var student model.Student
	err := tx.WithContext(ctx).Where("student_id = ?", strings.TrimSpace(studentID)).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *StudentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, studentID string) (*model.Student, error) {
	var student model.Student
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ?", strings.TrimSpace(studentID)).
		First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

// Settle 写回结算后的余额和积分，调用方已持有行锁
func (r *StudentRepository) Settle(ctx context.Context, tx *gorm.DB, studentID string, balance model.Money, points int64) error {
	return tx.WithContext(ctx).
		Model(&model.Student{}).
		Where("student_id = ?", strings.TrimSpace(studentID)).
		Updates(map[string]interface{}{
			"balance": balance,
			"points":  points,
		}).Error
}

// NamesByIDs 批量查询学生姓名
func (r *StudentRepository) NamesByIDs(ctx context.Context, tx *gorm.DB, ids []string) (map[string]string, error) {
	if tx == nil {
		tx = r.db
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var students []model.Student
	if err := tx.WithContext(ctx).Select("student_id", "name").Where("student_id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	for _, s := range students {
		names[strings.TrimSpace(s.StudentID)] = s.Name
	}
	return names, nil
}
