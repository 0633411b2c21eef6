package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"canteen/internal/config"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/logger"
	"canteen/internal/model"
	"canteen/internal/notify"
	"canteen/internal/repository"
	"canteen/pkg/idgen"

	"gorm.io/gorm"
)

// 订单时间接受 RFC3339 或 "2006-01-02 15:04:05"（本地时区）
var orderTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

type OrderService struct {
	db           *gorm.DB
	cfg          *config.Config
	locker       lock.Locker
	publisher    notify.Publisher
	orderRepo    *repository.OrderRepository
	detailRepo   *repository.OrderDetailRepository
	paymentRepo  *repository.PaymentRepository
	merchantRepo *repository.MerchantRepository
	outboxRepo   *repository.OutboxRepository
	views        *orderViewBuilder
	now          func() time.Time
}

// NewOrderService locker 为 nil 时使用进程内锁；publisher 可以为 nil
func NewOrderService(db *gorm.DB, cfg *config.Config, locker lock.Locker, publisher notify.Publisher) *OrderService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &OrderService{
		db:           db,
		cfg:          cfg,
		locker:       locker,
		publisher:    publisher,
		orderRepo:    repository.NewOrderRepository(db),
		detailRepo:   repository.NewOrderDetailRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		merchantRepo: repository.NewMerchantRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		views:        newOrderViewBuilder(db),
		now:          time.Now,
	}
}

type OrderLine struct {
	DishID   string `json:"dishId"`
	Quantity int    `json:"quantity"`
}

type CreateOrderRequest struct {
	StudentID   string       `json:"studentId"`
	MerchantID  string       `json:"merchantId"`
	TotalAmount *model.Money `json:"totalAmount"`
	Status      string       `json:"status"`
	OrderTime   string       `json:"orderTime"`
	Details     []OrderLine  `json:"details"`
}

type UpdateOrderRequest struct {
	Status      *string      `json:"status"`
	TotalAmount *model.Money `json:"totalAmount"`
	OrderTime   *string      `json:"orderTime"`
}

func parseOrderTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range orderTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationError("下单时间格式不正确: %s", raw)
}

func validateAmount(amount *model.Money) error {
	if amount == nil {
		return validationError("缺少订单金额")
	}
	if amount.IsNegative() {
		return validationError("订单金额不能为负数")
	}
	*amount = model.NewMoney(amount.Decimal)
	return nil
}

func validateStatus(status string) error {
	if !model.IsValidStatus(status) {
		return validationError("订单状态不合法: %s", status)
	}
	return nil
}

// normalizeLines 校验明细并合并同一菜品的多行
func normalizeLines(lines []OrderLine) ([]*model.OrderDetail, error) {
	if len(lines) == 0 {
		return nil, validationError("订单明细不能为空")
	}
	merged := make([]*model.OrderDetail, 0, len(lines))
	index := make(map[string]*model.OrderDetail, len(lines))
	for i, l := range lines {
		dishID := strings.TrimSpace(l.DishID)
		if dishID == "" {
			return nil, validationError("第 %d 条明细缺少菜品编号", i+1)
		}
		if l.Quantity <= 0 {
			return nil, validationError("第 %d 条明细数量必须为正整数", i+1)
		}
		if d, ok := index[dishID]; ok {
			d.Quantity += l.Quantity
			continue
		}
		d := &model.OrderDetail{DishID: dishID, Quantity: l.Quantity}
		index[dishID] = d
		merged = append(merged, d)
	}
	return merged, nil
}

// CreateOrder 创建订单，返回生成的订单编号
//
// 订单编号 = 档口编号 + YYMMDD + 当日序号。
// 查最大序号和插入在同一事务里，并持有 (档口, 日期) 锁；
// 多实例无 Redis 时靠唯一索引冲突后重试兜底。
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (string, error) {
	studentID := strings.TrimSpace(req.StudentID)
	merchantID := strings.TrimSpace(req.MerchantID)
	if studentID == "" || merchantID == "" {
		return "", validationError("缺少必要参数: studentId 和 merchantId")
	}
	if err := validateAmount(req.TotalAmount); err != nil {
		return "", err
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = model.OrderStatusPending
	}
	if err := validateStatus(status); err != nil {
		return "", err
	}
	orderTime := s.now()
	if strings.TrimSpace(req.OrderTime) != "" {
		t, err := parseOrderTime(req.OrderTime)
		if err != nil {
			return "", err
		}
		orderTime = t
	}
	details, err := normalizeLines(req.Details)
	if err != nil {
		return "", err
	}

	prefix := idgen.OrderPrefix(merchantID, orderTime)
	release, err := s.locker.Acquire(ctx, "order-seq:"+prefix)
	if err != nil {
		return "", infraError("系统繁忙，请稍后重试", err)
	}
	defer release()

	attempts := s.cfg.Business.MaxRetryCount
	if attempts < 1 {
		attempts = 1
	}

	var orderID string
	for attempt := 1; attempt <= attempts; attempt++ {
		orderID, err = s.insertOrder(ctx, studentID, merchantID, *req.TotalAmount, status, orderTime, details)
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", asServiceError("创建订单失败", err)
		}
		logger.Warnw("订单编号冲突，重试", "prefix", prefix, "attempt", attempt)
	}
	if err != nil {
		return "", infraError("创建订单失败", err)
	}

	logger.Infow("订单创建成功",
		"order_id", orderID,
		"student_id", studentID,
		"merchant_id", merchantID,
		"amount", req.TotalAmount.String(),
		"lines", len(details),
	)
	return orderID, nil
}

func (s *OrderService) insertOrder(ctx context.Context, studentID, merchantID string, amount model.Money, status string, orderTime time.Time, details []*model.OrderDetail) (string, error) {
	var orderID string
	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		prefix := idgen.OrderPrefix(merchantID, orderTime)

		existing, err := s.orderRepo.OrderIDsWithPrefix(txCtx, tx, prefix)
		if err != nil {
			return fmt.Errorf("查询当日订单失败: %w", err)
		}
		seq, err := idgen.NextSequence(existing, prefix)
		if err != nil {
			return ErrSequenceExhausted
		}
		if orderID, err = idgen.OrderID(merchantID, orderTime, seq); err != nil {
			return ErrSequenceExhausted
		}

		if s.cfg.Business.StrictOrderTotal {
			if err := s.checkTotal(txCtx, tx, amount, details); err != nil {
				return err
			}
		}

		order := &model.Order{
			OrderID:     orderID,
			StudentID:   studentID,
			MerchantID:  merchantID,
			OrderTime:   orderTime,
			TotalAmount: amount,
			Status:      status,
		}
		if err := s.orderRepo.Create(txCtx, tx, order); err != nil {
			return err
		}

		rows := make([]*model.OrderDetail, 0, len(details))
		for _, d := range details {
			rows = append(rows, &model.OrderDetail{OrderID: orderID, DishID: d.DishID, Quantity: d.Quantity})
		}
		if err := s.detailRepo.CreateBatch(txCtx, tx, rows); err != nil {
			return fmt.Errorf("写入订单明细失败: %w", err)
		}
		return nil
	})
	return orderID, err
}

// checkTotal 严格模式：订单金额必须等于各明细 单价 × 数量 之和
func (s *OrderService) checkTotal(ctx context.Context, tx *gorm.DB, amount model.Money, details []*model.OrderDetail) error {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.DishID)
	}
	dishes, err := s.merchantRepo.DishesByIDs(ctx, tx, ids)
	if err != nil {
		return fmt.Errorf("查询菜品失败: %w", err)
	}
	var sum model.Money
	for _, d := range details {
		dish, ok := dishes[d.DishID]
		if !ok {
			return validationError("菜品不存在: %s", d.DishID)
		}
		sum = sum.Add(dish.Price.MulInt(int64(d.Quantity)))
	}
	if !sum.Equal(amount) {
		return validationError("订单金额 %s 与明细合计 %s 不一致", amount.String(), sum.String())
	}
	return nil
}

// GetOrder 订单详情
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, validationError("缺少订单编号")
	}
	order, err := s.orderRepo.GetByOrderID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, infraError("查询订单失败", err)
	}
	views, err := s.views.build(ctx, nil, []*model.Order{order}, true)
	if err != nil {
		return nil, infraError("查询订单失败", err)
	}
	return views[0], nil
}

// UpdateOrder 部分更新，只改传入的字段
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, req *UpdateOrderRequest) (*OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, validationError("缺少订单编号")
	}

	updates := make(map[string]interface{}, 3)
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if err := validateStatus(status); err != nil {
			return nil, err
		}
		updates["status"] = status
	}
	if req.TotalAmount != nil {
		if err := validateAmount(req.TotalAmount); err != nil {
			return nil, err
		}
		updates["total_amount"] = *req.TotalAmount
	}
	if req.OrderTime != nil {
		t, err := parseOrderTime(*req.OrderTime)
		if err != nil {
			return nil, err
		}
		updates["order_time"] = t
	}
	if len(updates) == 0 {
		return nil, ErrNoUpdatableFields
	}

	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		order, err := s.orderRepo.GetByOrderIDForUpdate(txCtx, tx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("查询订单失败: %w", err)
		}
		if status, ok := updates["status"].(string); ok {
			if !model.CanTransitionTo(model.NormalizeStatus(order.Status), status) {
				return ErrStatusTransition
			}
			order.Status = status
		}
		if err := s.orderRepo.Updates(txCtx, tx, orderID, updates); err != nil {
			return fmt.Errorf("更新订单失败: %w", err)
		}

		if amount, ok := updates["total_amount"].(model.Money); ok {
			order.TotalAmount = amount
		}
		if t, ok := updates["order_time"].(time.Time); ok {
			order.OrderTime = t
		}
		return writeOutbox(txCtx, tx, s.outboxRepo, s.cfg, OutboxEventOrderUpdated, order, nil)
	})
	if err != nil {
		return nil, asServiceError("更新订单失败", err)
	}

	logger.Infow("订单更新成功", "order_id", orderID, "fields", len(updates))

	view, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrderUpdated(view)
	return view, nil
}

func (s *OrderService) publishOrderUpdated(v *OrderView) {
	if s.publisher == nil {
		return
	}
	order := &model.Order{
		OrderID:     v.OrderID,
		StudentID:   v.StudentID,
		MerchantID:  v.MerchantID,
		OrderTime:   v.OrderTime,
		TotalAmount: v.TotalAmount,
		Status:      v.Status,
	}
	s.publisher.Publish(notify.TopicOrders, notify.NewEvent(notify.EventOrderUpdated, notify.NewOrderPayload(order, v.StudentName, v.MerchantName)))
}

// DeleteOrder 级联删除：支付记录 -> 订单明细 -> 订单，积分流水保留
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return validationError("缺少订单编号")
	}

	var payments, details int64
	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		var err error
		if payments, err = s.paymentRepo.DeleteByOrderID(txCtx, tx, orderID); err != nil {
			return fmt.Errorf("删除支付记录失败: %w", err)
		}
		if details, err = s.detailRepo.DeleteByOrderID(txCtx, tx, orderID); err != nil {
			return fmt.Errorf("删除订单明细失败: %w", err)
		}
		rows, err := s.orderRepo.Delete(txCtx, tx, orderID)
		if err != nil {
			return fmt.Errorf("删除订单失败: %w", err)
		}
		if rows == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
	if err != nil {
		return asServiceError("删除订单失败", err)
	}

	logger.Infow("订单已删除", "order_id", orderID, "payments", payments, "details", details)
	return nil
}
