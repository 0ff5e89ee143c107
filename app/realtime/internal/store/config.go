package store

import (
	"time"

	"github.com/lk2023060901/cargorelay/pkg/database/postgres"
	"github.com/lk2023060901/cargorelay/pkg/database/redis"
)

// 读取后端
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config 集装箱状态配置
type Config struct {
	// memory / redis / postgres
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=memory redis postgres"`

	// 单集装箱串行化的条带锁数量
	Shards int `mapstructure:"shards" validate:"omitempty,min=1"`

	// 后端查不到的集装箱在该时间内不再查询
	MissTTL       time.Duration `mapstructure:"miss_ttl"`
	MissCacheSize int           `mapstructure:"miss_cache_size"`

	LoadTimeout time.Duration `mapstructure:"load_timeout"`

	// redis 键前缀，键为 <prefix>:<id>
	KeyPrefix string `mapstructure:"key_prefix"`
	// postgres 表名
	Table string `mapstructure:"table"`

	Redis    *redis.Config    `mapstructure:"redis"`
	Postgres *postgres.Config `mapstructure:"postgres"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Backend:       BackendMemory,
		Shards:        256,
		MissTTL:       30 * time.Second,
		MissCacheSize: 10000,
		LoadTimeout:   2 * time.Second,
		KeyPrefix:     "container",
		Table:         "containers",
	}
}
