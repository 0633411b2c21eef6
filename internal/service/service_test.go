package service

import (
	"sync"
	"testing"
	"time"

	"canteen/internal/config"
	"canteen/internal/model"
	"canteen/internal/notify"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type published struct {
	topic string
	event notify.Event
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(topic string, ev notify.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{topic: topic, event: ev})
	return 1
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

var oct28 = time.Date(2024, 10, 28, 11, 30, 0, 0, time.Local)

func testConfig() *config.Config {
	return &config.Config{
		Kafka:    config.KafkaConfig{Topic: config.KafkaTopicConfig{OrderEvents: "canteen.order.events"}},
		Business: config.BusinessConfig{MaxRetryCount: 3},
	}
}

func kafkaConfig() *config.Config {
	cfg := testConfig()
	cfg.Kafka.Enabled = true
	return cfg
}

func money(s string) *model.Money {
	m := model.MustMoney(s)
	return &m
}

func countRows(t *testing.T, db *gorm.DB, table string, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Where(where, args...).Count(&n).Error)
	return n
}

func reloadStudent(t *testing.T, db *gorm.DB, id string) *model.Student {
	t.Helper()
	var s model.Student
	require.NoError(t, db.Where("student_id = ?", id).First(&s).Error)
	return &s
}

func reloadOrder(t *testing.T, db *gorm.DB, id string) *model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, db.Where("order_id = ?", id).First(&o).Error)
	return &o
}
