// Package testutil 测试用的内存数据库和样例数据
package testutil

import (
	"fmt"
	"testing"
	"time"

	"canteen/internal/infrastructure/database"
	"canteen/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试一个独立的内存库
// 只开一个连接：共享缓存模式下多连接并发写会直接报表锁
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", sanitize(t.Name()), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func SeedStudent(t *testing.T, db *gorm.DB, id, balance string, points int64) *model.Student {
	t.Helper()
	s := &model.Student{
		StudentID: id,
		Name:      "学生" + id,
		Sex:       "男",
		Major:     "计算机科学与技术",
		Balance:   model.MustMoney(balance),
		Points:    points,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func SeedMerchant(t *testing.T, db *gorm.DB, id string) *model.Merchant {
	t.Helper()
	m := &model.Merchant{
		MerchantID: id,
		Name:       "档口" + id,
		Location:   "一食堂二楼",
		Manager:    "王师傅",
		Phone:      "13800000000",
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func SeedDish(t *testing.T, db *gorm.DB, id, merchantID, name, price string) *model.Dish {
	t.Helper()
	d := &model.Dish{DishID: id, MerchantID: merchantID, Name: name, Price: model.MustMoney(price)}
	require.NoError(t, db.Create(d).Error)
	return d
}

func SeedOrder(t *testing.T, db *gorm.DB, orderID, studentID, merchantID, total, status string, at time.Time) *model.Order {
	t.Helper()
	o := &model.Order{
		OrderID:     orderID,
		StudentID:   studentID,
		MerchantID:  merchantID,
		OrderTime:   at,
		TotalAmount: model.MustMoney(total),
		Status:      status,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

// LoadOutbox 按 id 读取发件箱消息
func LoadOutbox(t *testing.T, db *gorm.DB, id int64) *model.OutboxMessage {
	t.Helper()
	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg, id).Error)
	return &msg
}
