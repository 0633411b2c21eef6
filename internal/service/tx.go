package service

import (
	"context"
	"fmt"

	"canteen/internal/logger"

	"gorm.io/gorm"
)

// withTx 在事务中执行 fn
// 事务使用脱离请求取消的 ctx：客户端断开时事务仍然完整提交或回滚。
// 回滚失败只记日志，返回给调用方的始终是 fn 的原始错误。
func withTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback().Error; rbErr != nil {
				logger.Errorw("事务回滚失败", "error", rbErr, "panic", r)
			}
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			logger.Errorw("事务回滚失败", "error", rbErr, "cause", err)
		}
		return err
	}

	if err = tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}
