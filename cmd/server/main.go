package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen/internal/config"
	"canteen/internal/handler"
	"canteen/internal/infrastructure/cache"
	"canteen/internal/infrastructure/database"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/infrastructure/mq"
	"canteen/internal/job"
	"canteen/internal/logger"
	"canteen/internal/notify"
	"canteen/internal/repository"
)

func main() {
	defaultPath := "config/config.yaml"
	if p := os.Getenv("CANTEEN_CONFIG"); p != "" {
		defaultPath = p
	}
	configPath := flag.String("config", defaultPath, "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Server.Mode, logger.Options{
		Dir:        cfg.Log.Dir,
		Filename:   cfg.Log.Filename,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Errorw("服务异常退出", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 初始化数据库
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return err
	}

	// 订单编号锁：启用 Redis 时跨实例互斥，否则进程内互斥
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer cache.CloseRedis()
		locker = lock.NewRedisLocker(rdb, cfg.Business.OrderLockTTL())
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启用 Kafka 时由 outbox 投递订单事件
	if cfg.Kafka.Enabled {
		producer, err := mq.InitKafka(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warnw("关闭 Kafka producer 失败", "error", err)
			}
		}()

		outboxSender := job.NewOutboxSender(db, producer, cfg.Business.OutboxInterval(),
			cfg.Business.OutboxBatchSize, cfg.Business.MaxRetryCount)
		go outboxSender.Start(ctx)
	}

	hub := notify.Init()

	students := repository.NewStudentRepository(db)
	orderPoller := job.NewChangePoller("orders", notify.TopicOrders, notify.EventNewOrder,
		job.LatestOrder(repository.NewOrderRepository(db), students, repository.NewMerchantRepository(db)),
		hub, cfg.Business.PollTimeout())
	pointsPoller := job.NewChangePoller("points", notify.TopicPoints, notify.EventNewPoints,
		job.LatestPointRecord(repository.NewPointRecordRepository(db), students),
		hub, cfg.Business.PollTimeout())

	scheduler, err := job.StartPollers(ctx, cfg.Business.PollInterval(), orderPoller, pointsPoller)
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Warnw("关闭调度器失败", "error", err)
		}
	}()

	// 设置路由
	router := handler.SetupRouter(db, cfg, locker, hub)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("服务启动", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	logger.Infow("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("服务关闭异常", "error", err)
	}

	logger.Infow("服务已关闭")
	return nil
}
