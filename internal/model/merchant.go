package model

import (
	"time"
)

// Merchant 档口，核心流程内只读
type Merchant struct {
	MerchantID string `gorm:"primaryKey;type:varchar(16)" json:"merchantId"`
	Name       string `gorm:"type:varchar(64);not null" json:"name"`
	Location   string `gorm:"type:varchar(64)" json:"location"`
	Manager    string `gorm:"type:varchar(32)" json:"manager"`
	Phone      string `gorm:"type:varchar(20)" json:"phone"`
}

func (Merchant) TableName() string {
	return "merchant"
}

type Dish struct {
	DishID     string `gorm:"primaryKey;type:varchar(16)" json:"dishId"`
	Name       string `gorm:"type:varchar(64);not null" json:"name"`
	Price      Money  `gorm:"type:decimal(10,2);not null" json:"price"`
	MerchantID string `gorm:"type:varchar(16);index;not null" json:"merchantId"`
}

func (Dish) TableName() string {
	return "dish"
}

// Stock 档口库存
type Stock struct {
	StockID           string     `gorm:"primaryKey;type:varchar(16)" json:"stockId"`
	MerchantID        string     `gorm:"type:varchar(16);index;not null" json:"merchantId"`
	DishID            string     `gorm:"type:varchar(16);index;not null" json:"dishId"`
	InQuantity        int        `gorm:"not null;default:0" json:"inQuantity"`
	OutQuantity       int        `gorm:"not null;default:0" json:"outQuantity"`
	RemainingQuantity int        `gorm:"not null;default:0" json:"remainingQuantity"`
	UpdateTime        *time.Time `json:"updateTime"`
}

func (Stock) TableName() string {
	return "stock"
}
