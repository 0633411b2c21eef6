package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志输出配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 数据库配置
// driver 为 mysql / postgres / sqlite；dsn 非空时优先使用 dsn
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderEvents string `mapstructure:"order_events"`
}

type BusinessConfig struct {
	PollIntervalSeconds int  `mapstructure:"poll_interval_seconds"`
	PollTimeoutSeconds  int  `mapstructure:"poll_timeout_seconds"`
	StrictOrderTotal    bool `mapstructure:"strict_order_total"`
	OrderLockTTLSeconds int  `mapstructure:"order_lock_ttl_seconds"`
	MaxRetryCount       int  `mapstructure:"max_retry_count"`
	OutboxIntervalMs    int  `mapstructure:"outbox_interval_ms"`
	OutboxBatchSize     int  `mapstructure:"outbox_batch_size"`
}

// PollInterval 变更轮询周期
func (b BusinessConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalSeconds) * time.Second
}

// PollTimeout 单次轮询的查询超时
func (b BusinessConfig) PollTimeout() time.Duration {
	return time.Duration(b.PollTimeoutSeconds) * time.Second
}

// OrderLockTTL 订单编号锁的过期时间
func (b BusinessConfig) OrderLockTTL() time.Duration {
	return time.Duration(b.OrderLockTTLSeconds) * time.Second
}

// OutboxInterval 消息投递周期
func (b BusinessConfig) OutboxInterval() time.Duration {
	return time.Duration(b.OutboxIntervalMs) * time.Millisecond
}

// OrderEventsTopic Kafka 未启用时返回空串，业务侧据此跳过写 outbox
func (c *Config) OrderEventsTopic() string {
	if !c.Kafka.Enabled {
		return ""
	}
	return c.Kafka.Topic.OrderEvents
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.filename", "canteen.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.topic.order_events", "canteen.order.events")

	v.SetDefault("business.poll_interval_seconds", 3)
	v.SetDefault("business.poll_timeout_seconds", 2)
	v.SetDefault("business.strict_order_total", false)
	v.SetDefault("business.order_lock_ttl_seconds", 10)
	v.SetDefault("business.max_retry_count", 3)
	v.SetDefault("business.outbox_interval_ms", 500)
	v.SetDefault("business.outbox_batch_size", 100)
}

// LoadConfig 加载配置文件，环境变量 CANTEEN_* 可覆盖文件中的值
// 例如 CANTEEN_DATABASE_DSN 覆盖 database.dsn
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CANTEEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, nil
}
