package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"canteen/internal/config"
	"canteen/internal/logger"
	"canteen/internal/model"
	"canteen/internal/notify"
	"canteen/internal/repository"
	"canteen/pkg/idgen"

	"gorm.io/gorm"
)

const (
	OutboxEventOrderPaid    = "order-paid"
	OutboxEventOrderUpdated = "order-updated"
)

type PayService struct {
	db           *gorm.DB
	cfg          *config.Config
	publisher    notify.Publisher
	orderRepo    *repository.OrderRepository
	studentRepo  *repository.StudentRepository
	merchantRepo *repository.MerchantRepository
	paymentRepo  *repository.PaymentRepository
	pointRepo    *repository.PointRecordRepository
	outboxRepo   *repository.OutboxRepository
}

// NewPayService publisher 可以为 nil，此时不做实时推送
func NewPayService(db *gorm.DB, cfg *config.Config, publisher notify.Publisher) *PayService {
	return &PayService{
		db:           db,
		cfg:          cfg,
		publisher:    publisher,
		orderRepo:    repository.NewOrderRepository(db),
		studentRepo:  repository.NewStudentRepository(db),
		merchantRepo: repository.NewMerchantRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		pointRepo:    repository.NewPointRecordRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type PayRequest struct {
	OrderID   string `json:"orderId"`
	StudentID string `json:"studentId"`
	PayMethod string `json:"payMethod"`
}

type PayResult struct {
	PayID      string      `json:"payId"`
	NewBalance model.Money `json:"newBalance"`
	NewPoints  int64       `json:"newPoints"`
}

func (r *PayRequest) normalize() error {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.PayMethod = strings.TrimSpace(r.PayMethod)
	if r.OrderID == "" || r.StudentID == "" {
		return validationError("缺少必要参数: orderId 和 studentId")
	}
	if r.PayMethod == "" {
		r.PayMethod = model.DefaultPayMethod
	}
	if !model.IsValidPayMethod(r.PayMethod) {
		return validationError("不支持的支付方式: %s", r.PayMethod)
	}
	return nil
}

// PayOrder 支付订单
//
// 同一事务内完成：锁订单 -> 校验归属和状态 -> 锁学生 -> 校验余额
// -> 扣余额加积分 -> 订单置为已完成 -> 写支付记录 -> 写积分流水 (-> 写 outbox)
// 任何一步失败整体回滚。
func (s *PayService) PayOrder(ctx context.Context, req *PayRequest) (*PayResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	txCtx := context.WithoutCancel(ctx)

	var (
		result  *PayResult
		order   *model.Order
		student *model.Student
	)
	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.GetByOrderIDForUpdate(txCtx, tx, req.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("查询订单失败: %w", err)
		}

		if strings.TrimSpace(order.StudentID) != req.StudentID {
			return ErrOrderOwnership
		}
		if strings.TrimSpace(order.Status) != model.OrderStatusPending {
			return ErrOrderNotPayable
		}

		student, err = s.studentRepo.GetByIDForUpdate(txCtx, tx, req.StudentID)
		if err != nil {
			if errors.Is(err, repository.ErrStudentNotFound) {
				return ErrStudentNotFound
			}
			return fmt.Errorf("查询学生失败: %w", err)
		}

		amount := order.TotalAmount
		if student.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		newBalance := student.Balance.Sub(amount)
		// 积分按金额取整，角分部分不计
		earned := amount.Points()
		newPoints := student.Points + earned
		if err := s.studentRepo.Settle(txCtx, tx, student.StudentID, newBalance, newPoints); err != nil {
			return fmt.Errorf("扣款失败: %w", err)
		}

		// 带旧状态条件更新，并发支付同一订单时只有一个能成功
		if err := s.orderRepo.UpdateStatus(txCtx, tx, order.OrderID, model.OrderStatusPending, model.OrderStatusCompleted); err != nil {
			if errors.Is(err, repository.ErrOrderStatusInvalid) {
				return ErrOrderNotPayable
			}
			return fmt.Errorf("更新订单状态失败: %w", err)
		}

		now := time.Now()
		payment := &model.Payment{
			PayID:     idgen.PaymentID(order.OrderID),
			OrderID:   strings.TrimSpace(order.OrderID),
			PayMethod: req.PayMethod,
			Amount:    amount,
			PayTime:   now,
		}
		if err := s.paymentRepo.Create(txCtx, tx, payment); err != nil {
			return fmt.Errorf("写入支付记录失败: %w", err)
		}

		record := &model.PointRecord{
			StudentID: strings.TrimSpace(student.StudentID),
			OrderID:   payment.OrderID,
			Points:    earned,
			CreatedAt: now,
		}
		if err := s.pointRepo.Create(txCtx, tx, record); err != nil {
			return fmt.Errorf("写入积分流水失败: %w", err)
		}

		order.Status = model.OrderStatusCompleted
		if err := s.appendOutbox(txCtx, tx, OutboxEventOrderPaid, order, map[string]interface{}{
			"payId":     payment.PayID,
			"payMethod": payment.PayMethod,
			"points":    earned,
			"paidAt":    now.Format(time.RFC3339),
		}); err != nil {
			return err
		}

		result = &PayResult{
			PayID:      payment.PayID,
			NewBalance: newBalance,
			NewPoints:  newPoints,
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError("支付失败", err)
	}

	logger.Infow("支付成功",
		"order_id", order.OrderID,
		"student_id", req.StudentID,
		"amount", order.TotalAmount.String(),
		"pay_method", req.PayMethod,
		"pay_id", result.PayID,
	)

	s.publishOrderUpdated(ctx, order, student.Name)
	return result, nil
}

func (s *PayService) publishOrderUpdated(ctx context.Context, order *model.Order, studentName string) {
	if s.publisher == nil {
		return
	}
	merchantName := ""
	if m, err := s.merchantRepo.GetByID(context.WithoutCancel(ctx), nil, order.MerchantID); err == nil {
		merchantName = m.Name
	}
	s.publisher.Publish(notify.TopicOrders, notify.NewEvent(notify.EventOrderUpdated, notify.NewOrderPayload(order, studentName, merchantName)))
}

// appendOutbox Kafka 未启用时不写
func (s *PayService) appendOutbox(ctx context.Context, tx *gorm.DB, eventType string, order *model.Order, extra map[string]interface{}) error {
	return writeOutbox(ctx, tx, s.outboxRepo, s.cfg, eventType, order, extra)
}

func writeOutbox(ctx context.Context, tx *gorm.DB, repo *repository.OutboxRepository, cfg *config.Config, eventType string, order *model.Order, extra map[string]interface{}) error {
	if cfg == nil {
		return nil
	}
	topic := cfg.OrderEventsTopic()
	if topic == "" {
		return nil
	}

	payload := map[string]interface{}{
		"eventType":   eventType,
		"orderId":     strings.TrimSpace(order.OrderID),
		"studentId":   strings.TrimSpace(order.StudentID),
		"merchantId":  strings.TrimSpace(order.MerchantID),
		"totalAmount": order.TotalAmount.String(),
		"status":      order.Status,
		"orderTime":   order.OrderTime.Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: strings.TrimSpace(order.OrderID),
		EventType:  eventType,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := repo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
