package postgres

import (
	"fmt"
	"time"
)

// DBConfig 单个数据库实例配置
type DBConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	DBName   string `mapstructure:"db_name" json:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode" json:"ssl_mode"` // disable, require, verify-ca, verify-full
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxConns          int32         `mapstructure:"max_conns" json:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns" json:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime" json:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time" json:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period" json:"health_check_period"`
}

// Config PostgreSQL 配置
type Config struct {
	// 单机模式（与主从模式互斥）
	Standalone *DBConfig `mapstructure:"standalone" json:"standalone,omitempty"`

	// 主从模式：写主库，读从库
	Master *DBConfig  `mapstructure:"master" json:"master,omitempty"`
	Slaves []DBConfig `mapstructure:"slaves" json:"slaves,omitempty"`

	Pool PoolConfig `mapstructure:"pool" json:"pool"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout" json:"query_timeout"`

	// random（默认）或 round_robin
	SlaveLoadBalance string `mapstructure:"slave_load_balance" json:"slave_load_balance,omitempty"`
}

// DefaultConfig 返回默认配置（单机模式）
func DefaultConfig() *Config {
	return &Config{
		Standalone: &DBConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "cargorelay",
			SSLMode: "disable",
		},
		Pool: PoolConfig{
			MaxConns:          10,
			MinConns:          1,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
		},
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   5 * time.Second,
	}
}

func (c *Config) IsStandaloneMode() bool  { return c.Standalone != nil }
func (c *Config) IsMasterSlaveMode() bool { return c.Master != nil }

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.IsStandaloneMode() == c.IsMasterSlaveMode() {
		return fmt.Errorf("%w: must configure exactly one of standalone or master-slave mode", ErrInvalidConfig)
	}

	if c.IsStandaloneMode() {
		if err := c.Standalone.validate(); err != nil {
			return fmt.Errorf("standalone: %w", err)
		}
	} else {
		if err := c.Master.validate(); err != nil {
			return fmt.Errorf("master: %w", err)
		}
		for i := range c.Slaves {
			if err := c.Slaves[i].validate(); err != nil {
				return fmt.Errorf("slave %d: %w", i, err)
			}
		}
	}

	if c.Pool.MaxConns <= 0 {
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	}
	if c.Pool.MinConns < 0 || c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("%w: min_conns must be in [0, max_conns]", ErrInvalidConfig)
	}
	return nil
}

func (d *DBConfig) validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
	case d.Port <= 0 || d.Port > 65535:
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, d.Port)
	case d.User == "":
		return fmt.Errorf("%w: user is empty", ErrInvalidConfig)
	case d.DBName == "":
		return fmt.Errorf("%w: db_name is empty", ErrInvalidConfig)
	}
	return nil
}

// connString 构建 libpq 格式连接串
func (d *DBConfig) connString(connectTimeout time.Duration) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode, int(connectTimeout.Seconds()),
	)
}
