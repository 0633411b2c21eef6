package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"

	"gorm.io/gorm"
)

// OrderView 订单详情
type OrderView struct {
	OrderID      string        `json:"orderId"`
	StudentID    string        `json:"studentId"`
	StudentName  string        `json:"studentName"`
	MerchantID   string        `json:"merchantId"`
	MerchantName string        `json:"merchantName"`
	Location     string        `json:"location"`
	TotalAmount  model.Money   `json:"totalAmount"`
	Status       string        `json:"status"`
	OrderTime    time.Time     `json:"orderTime"`
	Payment      []PaymentView `json:"payment"`
	Details      []DetailLine  `json:"details"`
	PointReward  int64         `json:"pointReward"`
}

type PaymentView struct {
	PayID     string      `json:"payId"`
	PayMethod string      `json:"payMethod"`
	Amount    model.Money `json:"amount"`
	PayTime   time.Time   `json:"payTime"`
}

// DetailLine 订单明细，小计按当前菜品单价现算
type DetailLine struct {
	OrderID  string      `json:"orderId"`
	DishID   string      `json:"dishId"`
	DishName string      `json:"dishName"`
	Price    model.Money `json:"price"`
	Quantity int         `json:"quantity"`
	Subtotal model.Money `json:"subtotal"`
}

type orderViewBuilder struct {
	studentRepo  *repository.StudentRepository
	merchantRepo *repository.MerchantRepository
	detailRepo   *repository.OrderDetailRepository
	paymentRepo  *repository.PaymentRepository
	pointRepo    *repository.PointRecordRepository
}

func newOrderViewBuilder(db *gorm.DB) *orderViewBuilder {
	return &orderViewBuilder{
		studentRepo:  repository.NewStudentRepository(db),
		merchantRepo: repository.NewMerchantRepository(db),
		detailRepo:   repository.NewOrderDetailRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		pointRepo:    repository.NewPointRecordRepository(db),
	}
}

// build 批量组装订单视图；full 为 true 时附带支付记录和积分
func (b *orderViewBuilder) build(ctx context.Context, tx *gorm.DB, orders []*model.Order, full bool) ([]*OrderView, error) {
	views := make([]*OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	orderIDs := make([]string, 0, len(orders))
	studentIDs := make([]string, 0, len(orders))
	merchantIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, strings.TrimSpace(o.OrderID))
		studentIDs = append(studentIDs, strings.TrimSpace(o.StudentID))
		merchantIDs = append(merchantIDs, strings.TrimSpace(o.MerchantID))
	}

	studentNames, err := b.studentRepo.NamesByIDs(ctx, tx, uniq(studentIDs))
	if err != nil {
		return nil, fmt.Errorf("查询学生失败: %w", err)
	}
	merchants, err := b.merchantRepo.GetByIDs(ctx, tx, uniq(merchantIDs))
	if err != nil {
		return nil, fmt.Errorf("查询商户失败: %w", err)
	}
	details, err := b.detailRepo.ListByOrderIDs(ctx, tx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("查询订单明细失败: %w", err)
	}
	dishIDs := make([]string, 0, len(details))
	for _, d := range details {
		dishIDs = append(dishIDs, strings.TrimSpace(d.DishID))
	}
	dishes, err := b.merchantRepo.DishesByIDs(ctx, tx, uniq(dishIDs))
	if err != nil {
		return nil, fmt.Errorf("查询菜品失败: %w", err)
	}

	linesByOrder := make(map[string][]DetailLine, len(orders))
	for _, d := range details {
		line := DetailLine{
			OrderID:  strings.TrimSpace(d.OrderID),
			DishID:   strings.TrimSpace(d.DishID),
			Quantity: d.Quantity,
		}
		if dish, ok := dishes[line.DishID]; ok {
			line.DishName = dish.Name
			line.Price = dish.Price
			line.Subtotal = dish.Price.MulInt(int64(d.Quantity))
		}
		linesByOrder[line.OrderID] = append(linesByOrder[line.OrderID], line)
	}

	for _, o := range orders {
		v := &OrderView{
			OrderID:     strings.TrimSpace(o.OrderID),
			StudentID:   strings.TrimSpace(o.StudentID),
			MerchantID:  strings.TrimSpace(o.MerchantID),
			TotalAmount: o.TotalAmount,
			Status:      model.NormalizeStatus(o.Status),
			OrderTime:   o.OrderTime,
			Payment:     []PaymentView{},
			Details:     linesByOrder[strings.TrimSpace(o.OrderID)],
		}
		if v.Details == nil {
			v.Details = []DetailLine{}
		}
		v.StudentName = studentNames[v.StudentID]
		if m, ok := merchants[v.MerchantID]; ok {
			v.MerchantName = m.Name
			v.Location = m.Location
		}

		if full {
			payments, err := b.paymentRepo.ListByOrderID(ctx, tx, v.OrderID)
			if err != nil {
				return nil, fmt.Errorf("查询支付记录失败: %w", err)
			}
			for _, p := range payments {
				v.Payment = append(v.Payment, PaymentView{
					PayID:     p.PayID,
					PayMethod: p.PayMethod,
					Amount:    p.Amount,
					PayTime:   p.PayTime,
				})
			}
			if v.PointReward, _, err = b.pointRepo.SumByOrderID(ctx, tx, v.OrderID); err != nil {
				return nil, fmt.Errorf("查询积分记录失败: %w", err)
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
