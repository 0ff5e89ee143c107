package redis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Client Redis 客户端（隐藏 go-redis 类型，主从模式下读写分离）
type Client struct {
	master     redis.UniversalClient
	slaves     []redis.UniversalClient
	cfg        *Config
	slaveIndex atomic.Uint64
}

// NewClient 创建 Redis 客户端，不主动建立连接
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	switch {
	case cfg.IsStandalone():
		c.master = redis.NewClient(c.nodeOptions(*cfg.Standalone))
	case cfg.IsMasterSlave():
		c.master = redis.NewClient(c.nodeOptions(*cfg.Master))
		for _, s := range cfg.Slaves {
			c.slaves = append(c.slaves, redis.NewClient(c.nodeOptions(s)))
		}
	case cfg.IsCluster():
		c.master = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           cfg.Cluster.Addrs,
			Password:        cfg.Cluster.Password,
			MaxIdleConns:    cfg.Pool.MaxIdleConns,
			MaxActiveConns:  cfg.Pool.MaxOpenConns,
			ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Pool.ConnMaxIdleTime,
			DialTimeout:     cfg.Pool.DialTimeout,
			ReadTimeout:     cfg.Pool.ReadTimeout,
			WriteTimeout:    cfg.Pool.WriteTimeout,
			PoolTimeout:     cfg.Pool.PoolTimeout,
		})
	}
	return c, nil
}

func (c *Client) nodeOptions(n NodeConfig) *redis.Options {
	return &redis.Options{
		Addr:            n.Addr(),
		Password:        n.Password,
		DB:              n.DB,
		MaxIdleConns:    c.cfg.Pool.MaxIdleConns,
		MaxActiveConns:  c.cfg.Pool.MaxOpenConns,
		ConnMaxLifetime: c.cfg.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: c.cfg.Pool.ConnMaxIdleTime,
		DialTimeout:     c.cfg.Pool.DialTimeout,
		ReadTimeout:     c.cfg.Pool.ReadTimeout,
		WriteTimeout:    c.cfg.Pool.WriteTimeout,
		PoolTimeout:     c.cfg.Pool.PoolTimeout,
	}
}

// reader 读操作使用的节点
func (c *Client) reader() redis.UniversalClient {
	if len(c.slaves) == 0 {
		return c.master
	}
	if c.cfg.SlaveLoadBalance == "round_robin" {
		return c.slaves[c.slaveIndex.Add(1)%uint64(len(c.slaves))]
	}
	return c.slaves[rand.IntN(len(c.slaves))]
}

// Ping 测试所有节点
func (c *Client) Ping(ctx context.Context) error {
	if err := c.master.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: master ping: %w", err)
	}
	for i, s := range c.slaves {
		if err := s.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: slave[%d] ping: %w", i, err)
		}
	}
	return nil
}

// PoolStats 主节点连接池统计
type PoolStats struct {
	Hits       uint32
	Misses     uint32
	Timeouts   uint32
	TotalConns uint32
	IdleConns  uint32
	StaleConns uint32
}

func (c *Client) PoolStats() PoolStats {
	s := c.master.PoolStats()
	return PoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		StaleConns: s.StaleConns,
	}
}

// Close 关闭所有节点
func (c *Client) Close() error {
	if err := c.master.Close(); err != nil {
		return fmt.Errorf("redis: close master: %w", err)
	}
	for i, s := range c.slaves {
		if err := s.Close(); err != nil {
			return fmt.Errorf("redis: close slave[%d]: %w", i, err)
		}
	}
	return nil
}
