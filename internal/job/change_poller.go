package job

import (
	"context"
	"sync/atomic"
	"time"

	"canteen/internal/logger"
	"canteen/internal/notify"
)

// Snapshot 被监视表中最新的一行
type Snapshot struct {
	ID      int64
	Payload interface{}
}

// LatestFunc 取最新一行，表为空时返回 nil
type LatestFunc func(ctx context.Context) (*Snapshot, error)

// ChangePoller 轮询一张表的最新行，发现新行时推送一条事件
// 每轮只看最新一行，两次轮询之间插入的多行只通知最后一行
type ChangePoller struct {
	name      string
	topic     string
	event     string
	latest    LatestFunc
	publisher notify.Publisher
	timeout   time.Duration

	mark    atomic.Int64
	seeded  atomic.Bool
	running atomic.Bool
}

func NewChangePoller(name, topic, event string, latest LatestFunc, publisher notify.Publisher, timeout time.Duration) *ChangePoller {
	return &ChangePoller{
		name:      name,
		topic:     topic,
		event:     event,
		latest:    latest,
		publisher: publisher,
		timeout:   timeout,
	}
}

func (p *ChangePoller) Name() string {
	return p.name
}

// Mark 当前高水位
func (p *ChangePoller) Mark() int64 {
	return p.mark.Load()
}

// Tick 执行一轮轮询，返回是否推送了事件
// 上一轮还没结束时直接跳过
func (p *ChangePoller) Tick(ctx context.Context) (bool, error) {
	if !p.running.CompareAndSwap(false, true) {
		logger.Debugw("[ChangePoller] 上一轮未结束，跳过", "poller", p.name)
		return false, nil
	}
	defer p.running.Store(false)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	snap, err := p.latest(ctx)
	if err != nil {
		return false, err
	}

	if !p.seeded.Load() {
		if snap != nil {
			p.mark.Store(snap.ID)
		}
		p.seeded.Store(true)
		logger.Infow("[ChangePoller] 初始化高水位", "poller", p.name, "mark", p.mark.Load())
		return false, nil
	}

	if snap == nil {
		return false, nil
	}

	current := p.mark.Load()
	if snap.ID <= current || !p.mark.CompareAndSwap(current, snap.ID) {
		return false, nil
	}

	delivered := 0
	if p.publisher != nil {
		delivered = p.publisher.Publish(p.topic, notify.NewEvent(p.event, snap.Payload))
	}
	logger.Infow("[ChangePoller] 发现新记录", "poller", p.name, "id", snap.ID, "event", p.event, "delivered", delivered)
	return true, nil
}

// Run 供调度器调用，错误只记日志
func (p *ChangePoller) Run(ctx context.Context) {
	if _, err := p.Tick(ctx); err != nil {
		logger.Errorw("[ChangePoller] 轮询失败", "poller", p.name, "error", err)
	}
}
