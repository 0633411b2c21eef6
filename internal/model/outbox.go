package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 与业务写入同一事务落库，由 OutboxSender 投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"messageKey"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"eventType"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retryCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// All 返回需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Student{},
		&Merchant{},
		&Dish{},
		&Stock{},
		&Order{},
		&OrderDetail{},
		&Payment{},
		&PointRecord{},
		&OutboxMessage{},
	}
}
