package job

import (
	"context"
	"errors"
	"time"

	"canteen/internal/infrastructure/breaker"
	"canteen/internal/logger"
	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"
)

// MessageSender mq.Producer 满足该接口
type MessageSender interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 把 outbox 表里的订单事件投递到 Kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	sender     MessageSender
	cb         *gobreaker.CircuitBreaker[struct{}]
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, sender MessageSender, interval time.Duration, batchSize, maxRetry int) *OutboxSender {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		sender:     sender,
		cb:         breaker.New("outbox-kafka"),
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  batchSize,
		maxRetry:   maxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Infow("[OutboxSender] 消息发送任务启动", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infow("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			logger.Infow("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 返回本轮成功投递的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Errorw("[OutboxSender] 查询消息失败", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		ok, open := s.sendMessage(ctx, msg)
		if open {
			// 熔断打开，剩下的消息等下一轮
			break
		}
		if ok {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) (ok bool, breakerOpen bool) {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.sender.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.Warnw("[OutboxSender] 熔断中，暂停投递", "id", msg.ID)
		return false, true
	}

	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			logger.Errorw("[OutboxSender] 更新消息状态失败", "id", msg.ID, "error", updateErr)
			return false, false
		}
		logger.Infow("[OutboxSender] 消息发送成功", "id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)
		return true, false
	}

	logger.Warnw("[OutboxSender] 消息发送失败", "id", msg.ID, "error", err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.Errorw("[OutboxSender] 增加重试次数失败", "id", msg.ID, "error", err)
	}

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.Errorw("[OutboxSender] 标记消息失败状态失败", "id", msg.ID, "error", err)
		} else {
			logger.Warnw("[OutboxSender] 消息超过最大重试次数，标记为失败", "id", msg.ID)
		}
	}
	return false, false
}
