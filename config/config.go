// Package config 提供基于 viper 的配置加载
//
// 支持配置文件（YAML）与环境变量（前缀 WENJUAN_），环境变量
// 优先。所有键都有可用的默认值，零配置即可跑起来。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// SnapshotConfig 快照配置
type SnapshotConfig struct {
	// Interval 每多少个事件写一次快照，0 表示关闭快照
	Interval int `mapstructure:"interval"`
}

// ProjectionConfig 投影配置
type ProjectionConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// RedisConfig Redis 配置，Addr 为空表示不启用
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	GuardTTL time.Duration `mapstructure:"guard_ttl"`
}

// NATSConfig NATS 配置，URL 为空表示不启用
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level debug/info/warn/error
	Level string `mapstructure:"level"`
}

// Config 应用配置
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Log        LogConfig        `mapstructure:"log"`
}

// Load 加载配置；path 为空时只用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WENJUAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "wenjuan.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("snapshot.interval", 100)
	v.SetDefault("projection.chunk_size", 1000)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.guard_ttl", time.Duration(0))
	v.SetDefault("nats.url", "")
	v.SetDefault("log.level", "info")
}
