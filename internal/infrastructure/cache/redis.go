package cache

import (
	"context"
	"fmt"
	"time"

	"canteen/internal/config"
	"canteen/internal/logger"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// InitRedis 连接 Redis，用于订单编号的分布式锁
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	RedisClient = client
	logger.Infow("Redis 连接成功", "addr", client.Options().Addr)
	return client, nil
}

// CloseRedis 关闭连接
func CloseRedis() {
	if RedisClient != nil {
		_ = RedisClient.Close()
	}
}
