package model

import (
	"time"
)

const (
	PayMethodWechat     = "微信"
	PayMethodAlipay     = "支付宝"
	PayMethodCampusCard = "校园卡"
	PayMethodCash       = "现金"

	DefaultPayMethod = PayMethodCampusCard
)

func IsValidPayMethod(method string) bool {
	switch method {
	case PayMethodWechat, PayMethodAlipay, PayMethodCampusCard, PayMethodCash:
		return true
	}
	return false
}

const (
	PaymentTable       = "payment"
	LegacyPaymentTable = "PayMentMethod"
)

// Payment 支付记录，每笔成功支付写一行，之后不再修改
type Payment struct {
	PayID     string    `gorm:"primaryKey;type:varchar(40)" json:"payId"`
	OrderID   string    `gorm:"type:varchar(32);index;not null" json:"orderId"`
	PayMethod string    `gorm:"type:varchar(16);not null" json:"payMethod"`
	Amount    Money     `gorm:"type:decimal(10,2);not null" json:"amount"`
	PayTime   time.Time `gorm:"not null" json:"payTime"`
}

func (Payment) TableName() string {
	return PaymentTable
}

// PointRecord 积分流水，只追加
type PointRecord struct {
	RecordID  int64     `gorm:"primaryKey;autoIncrement" json:"recordId"`
	StudentID string    `gorm:"type:varchar(16);index;not null" json:"studentId"`
	OrderID   string    `gorm:"type:varchar(32);index;not null" json:"orderId"`
	Points    int64     `gorm:"not null" json:"points"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (PointRecord) TableName() string {
	return "point_record"
}
