package job

import (
	"context"
	"fmt"
	"time"

	"canteen/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// StartPollers 按固定周期调度所有轮询器，返回已启动的调度器，退出时调用 Shutdown
func StartPollers(ctx context.Context, interval time.Duration, pollers ...*ChangePoller) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = 3 * time.Second
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}

	for _, p := range pollers {
		p := p
		_, err = s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { p.Run(ctx) }),
			gocron.WithName(p.Name()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("注册轮询任务 %s 失败: %w", p.Name(), err)
		}
	}

	s.Start()
	logger.Infow("[ChangePoller] 轮询任务启动", "count", len(pollers), "interval", interval.String())
	return s, nil
}
