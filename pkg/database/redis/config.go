package redis

import (
	"fmt"
	"time"
)

// Config Redis 配置（Standalone/Master-Slave/Cluster 三种模式，必须且只能配置一种）
type Config struct {
	Standalone *NodeConfig `mapstructure:"standalone" json:"standalone,omitempty"`

	// 主从模式：写主库，读从库
	Master *NodeConfig  `mapstructure:"master" json:"master,omitempty"`
	Slaves []NodeConfig `mapstructure:"slaves" json:"slaves,omitempty"`

	Cluster *ClusterConfig `mapstructure:"cluster" json:"cluster,omitempty"`

	Pool PoolConfig `mapstructure:"pool" json:"pool"`

	// random（默认）或 round_robin
	SlaveLoadBalance string `mapstructure:"slave_load_balance" json:"slave_load_balance,omitempty"`
}

// NodeConfig 单节点配置
type NodeConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// Addr host:port
func (n NodeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// ClusterConfig 集群配置
type ClusterConfig struct {
	Addrs    []string `mapstructure:"addrs" json:"addrs"`
	Password string   `mapstructure:"password" json:"password"`
}

// PoolConfig 连接池配置（所有模式共享）
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout" json:"pool_timeout"`
}

// DefaultConfig 本地单机默认配置
func DefaultConfig() *Config {
	return &Config{
		Standalone: &NodeConfig{Host: "localhost", Port: 6379},
		Pool: PoolConfig{
			MaxIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	modes := 0
	for _, set := range []bool{c.Standalone != nil, c.Master != nil, c.Cluster != nil} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return ErrInvalidConfig
	}

	if c.Master != nil && c.SlaveLoadBalance != "" &&
		c.SlaveLoadBalance != "random" && c.SlaveLoadBalance != "round_robin" {
		return ErrInvalidSlaveLoadBalance
	}
	return nil
}

func (c *Config) IsStandalone() bool  { return c.Standalone != nil }
func (c *Config) IsMasterSlave() bool { return c.Master != nil }
func (c *Config) IsCluster() bool     { return c.Cluster != nil }
