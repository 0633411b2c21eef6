package model

import (
	"strings"
	"time"
)

const (
	OrderStatusPending   = "待支付"
	OrderStatusCompleted = "已完成"
)

// 订单状态只允许 待支付 -> 已完成，不可回退
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	if currentStatus == targetStatus {
		return true
	}
	for _, s := range ValidStatusTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	return status == OrderStatusPending || status == OrderStatusCompleted
}

// NormalizeStatus 库里存了无法识别的状态时按待支付处理
func NormalizeStatus(status string) string {
	s := strings.TrimSpace(status)
	if IsValidStatus(s) {
		return s
	}
	return OrderStatusPending
}

// Order 订单表
// ID 为自增行号，按插入顺序递增，供变更轮询做高水位比较；
// OrderID 为业务单号：档口编号 + YYMMDD + 4 位当日序号
type Order struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"orderId"`
	StudentID   string    `gorm:"type:varchar(16);index;not null" json:"studentId"`
	MerchantID  string    `gorm:"type:varchar(16);index;not null" json:"merchantId"`
	OrderTime   time.Time `gorm:"not null;index" json:"orderTime"`
	TotalAmount Money     `gorm:"type:decimal(10,2);not null" json:"totalAmount"`
	Status      string    `gorm:"type:varchar(16);index;not null" json:"status"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderDetail 订单明细，小计不落库，读取时按菜品单价现算
type OrderDetail struct {
	OrderID  string `gorm:"primaryKey;type:varchar(32)" json:"orderId"`
	DishID   string `gorm:"primaryKey;type:varchar(16)" json:"dishId"`
	Quantity int    `gorm:"not null" json:"quantity"`
}

func (OrderDetail) TableName() string {
	return "order_detail"
}
