package model

// Student 学生表
// Balance 为校园账户余额，Points 为消费积分（只增不减，由支付累积）
type Student struct {
	StudentID string `gorm:"primaryKey;type:varchar(16)" json:"studentId"`
	Name      string `gorm:"type:varchar(32);not null" json:"name"`
	Sex       string `gorm:"type:varchar(4)" json:"sex"`
	Major     string `gorm:"type:varchar(64)" json:"major"`
	Balance   Money  `gorm:"type:decimal(10,2);not null;default:0" json:"balance"`
	Points    int64  `gorm:"not null;default:0" json:"points"`
}

func (Student) TableName() string {
	return "student"
}
