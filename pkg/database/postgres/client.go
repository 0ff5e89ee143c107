package postgres

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Client PostgreSQL 客户端
type Client struct {
	master *pgxpool.Pool
	slaves []*pgxpool.Pool
	cfg    *Config
	logger logger.Logger

	slaveIndex atomic.Uint64
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建客户端并校验主库连通性
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	newCfg := DefaultConfig()
	if cfg != nil && cfg.Master != nil {
		// 主从模式下不带入默认的单机配置
		newCfg.Standalone = nil
	}
	newCfg, err := config.MergeConfig(newCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: newCfg, logger: logger.NewNoop()}
	for _, opt := range opts {
		opt(c)
	}

	primary := newCfg.Standalone
	if newCfg.IsMasterSlaveMode() {
		primary = newCfg.Master
	}
	if c.master, err = createPool(ctx, newCfg, primary); err != nil {
		return nil, fmt.Errorf("postgres: create primary pool: %w", err)
	}

	for i := range newCfg.Slaves {
		pool, err := createPool(ctx, newCfg, &newCfg.Slaves[i])
		if err != nil {
			// 从库不可用时读流量回落到主库
			c.logger.Warn("postgres slave unavailable", "index", i, "error", err)
			continue
		}
		c.slaves = append(c.slaves, pool)
	}
	return c, nil
}

func createPool(ctx context.Context, cfg *Config, db *DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.connString(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = cfg.Pool.MaxConns
	poolCfg.MinConns = cfg.Pool.MinConns
	poolCfg.MaxConnLifetime = cfg.Pool.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.Pool.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func (c *Client) reader() *pgxpool.Pool {
	if len(c.slaves) == 0 {
		return c.master
	}
	if c.cfg.SlaveLoadBalance == "round_robin" {
		return c.slaves[c.slaveIndex.Add(1)%uint64(len(c.slaves))]
	}
	return c.slaves[rand.IntN(len(c.slaves))]
}

// QueryRow 单行查询（从库）
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.reader().QueryRow(ctx, sql, args...)
}

// Ping 检查主库连接，从库失败只记录日志
func (c *Client) Ping(ctx context.Context) error {
	if err := c.master.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: master ping: %w", err)
	}
	for i, s := range c.slaves {
		if err := s.Ping(ctx); err != nil {
			c.logger.Warn("postgres slave ping failed", "index", i, "error", err)
		}
	}
	return nil
}

// Stats 主库连接池状态
func (c *Client) Stats() *PoolStats {
	s := c.master.Stat()
	return &PoolStats{
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration(),
		AcquiredConns:   s.AcquiredConns(),
		IdleConns:       s.IdleConns(),
		MaxConns:        s.MaxConns(),
		TotalConns:      s.TotalConns(),
	}
}

// Close 关闭所有连接池
func (c *Client) Close() {
	if c.master != nil {
		c.master.Close()
	}
	for _, s := range c.slaves {
		s.Close()
	}
}
