package service

import (
	"context"
	"errors"
	"strings"

	"canteen/internal/model"
	"canteen/internal/repository"

	"gorm.io/gorm"
)

type StudentService struct {
	studentRepo *repository.StudentRepository
	orderRepo   *repository.OrderRepository
	views       *orderViewBuilder
}

func NewStudentService(db *gorm.DB) *StudentService {
	return &StudentService{
		studentRepo: repository.NewStudentRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		views:       newOrderViewBuilder(db),
	}
}

func (s *StudentService) GetStudent(ctx context.Context, studentID string) (*model.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, validationError("缺少学生编号")
	}
	student, err := s.studentRepo.GetByID(ctx, nil, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, infraError("查询学生失败", err)
	}
	student.StudentID = strings.TrimSpace(student.StudentID)
	return student, nil
}

// ListOrders 学生的订单，按下单时间倒序
func (s *StudentService) ListOrders(ctx context.Context, studentID string) ([]*OrderView, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, validationError("缺少学生编号")
	}
	orders, err := s.orderRepo.ListByStudentID(ctx, studentID)
	if err != nil {
		return nil, infraError("查询订单失败", err)
	}
	views, err := s.views.build(ctx, nil, orders, false)
	if err != nil {
		return nil, infraError("查询订单失败", err)
	}
	return views, nil
}
