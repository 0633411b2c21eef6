package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"canteen/internal/infrastructure/mq"
	"canteen/internal/model"
	"canteen/internal/repository"
	"canteen/internal/testutil"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type failingSender struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSender) SendMessage(topic, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("kafka: client has run out of available brokers")
}

func seedOutbox(t *testing.T, db *gorm.DB, key string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: key,
		EventType:  "order-paid",
		Topic:      "canteen.order.events",
		Payload:    `{"orderId":"` + key + `"}`,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, repository.NewOutboxRepository(db).Create(context.Background(), nil, msg))
	return msg
}

func TestOutboxSenderDelivers(t *testing.T) {
	db := testutil.NewDB(t)
	first := seedOutbox(t, db, "011012410280001")
	second := seedOutbox(t, db, "011012410280002")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	sender := NewOutboxSender(db, mq.NewProducer(producer), time.Second, 10, 3)
	assert.Equal(t, 2, sender.processPendingMessages(context.Background()))

	for _, id := range []int64{first.ID, second.ID} {
		assert.Equal(t, model.OutboxStatusSent, testutil.LoadOutbox(t, db, id).Status)
	}

	// 已发送的消息不再投递
	assert.Equal(t, 0, sender.processPendingMessages(context.Background()))
	require.NoError(t, producer.Close())
}

func TestOutboxSenderMarksFailedAfterMaxRetry(t *testing.T) {
	db := testutil.NewDB(t)
	msg := seedOutbox(t, db, "011012410280001")
	failing := &failingSender{}
	sender := NewOutboxSender(db, failing, time.Second, 10, 3)

	for i := 1; i <= 2; i++ {
		assert.Equal(t, 0, sender.processPendingMessages(context.Background()))
		got := testutil.LoadOutbox(t, db, msg.ID)
		assert.Equal(t, i, got.RetryCount)
		assert.Equal(t, model.OutboxStatusPending, got.Status)
	}

	sender.processPendingMessages(context.Background())
	got := testutil.LoadOutbox(t, db, msg.ID)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, model.OutboxStatusFailed, got.Status)
}

func TestOutboxSenderStopsWhenBreakerOpen(t *testing.T) {
	db := testutil.NewDB(t)
	var ids []int64
	for _, key := range []string{"011012410280001", "011012410280002", "011012410280003", "011012410280004"} {
		ids = append(ids, seedOutbox(t, db, key).ID)
	}
	failing := &failingSender{}
	sender := NewOutboxSender(db, failing, time.Second, 10, 5)

	// 第三次失败后熔断打开，第四条不再尝试
	sender.processPendingMessages(context.Background())
	assert.Equal(t, 3, failing.calls)

	sender.processPendingMessages(context.Background())
	assert.Equal(t, 3, failing.calls)

	assert.Equal(t, 0, testutil.LoadOutbox(t, db, ids[3]).RetryCount)
}

func TestOutboxSenderStartStop(t *testing.T) {
	db := testutil.NewDB(t)
	msg := seedOutbox(t, db, "011012410280001")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	sender := NewOutboxSender(db, mq.NewProducer(producer), 10*time.Millisecond, 10, 3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sender.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		var got model.OutboxMessage
		err := db.First(&got, msg.ID).Error
		return err == nil && got.Status == model.OutboxStatusSent
	}, 2*time.Second, 10*time.Millisecond)

	sender.Stop()
	<-done
	require.NoError(t, producer.Close())
}
