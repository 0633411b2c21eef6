package database

import (
	"fmt"
	"strings"
	"time"

	"canteen/internal/config"
	"canteen/internal/logger"
	"canteen/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB 按配置的驱动打开数据库并迁移表结构
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// 连接池配置
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	DB = db
	logger.Infow("数据库连接成功", "driver", normalizeDriver(cfg.Driver))
	return db, nil
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("自动迁移表结构失败: %w", err)
	}
	return nil
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "", "mysql":
		return "mysql"
	case "postgres", "postgresql":
		return "postgres"
	}
	return d
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch normalizeDriver(cfg.Driver) {
	case "mysql":
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				cfg.User,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.Database,
			)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Shanghai",
				cfg.Host,
				cfg.Port,
				cfg.User,
				cfg.Password,
				cfg.Database,
			)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			dsn = "canteen.db"
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
}
