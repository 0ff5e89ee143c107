package websocket

import (
	"fmt"
	"time"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxConnections      int `mapstructure:"max_connections"`        // 0 表示不限制
	MaxConnectionsPerIP int `mapstructure:"max_connections_per_ip"` // 0 表示不限制
}

// ServerConfig WebSocket 服务端配置
type ServerConfig struct {
	// Addr 非空时 Start 会自行监听；为空时通过 Handler 挂载到外部 http.Server
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`

	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"` // 包含 "*" 时不检查 Origin

	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`

	// 每连接入站限流，Rate <= 0 时关闭
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Pool PoolConfig `mapstructure:"pool"`
}

// RateLimitConfig 入站消息限流
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"` // 每秒消息数
	Burst int     `mapstructure:"burst"`
}

// DefaultServerConfig 默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:             ":3005",
		Path:             "/ws",
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   1 << 20,
		PingInterval:     25 * time.Second,
		PongTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SendQueueSize:    256,
		RateLimit:        RateLimitConfig{Rate: 20, Burst: 40},
		Pool: PoolConfig{
			MaxConnections:      10000,
			MaxConnectionsPerIP: 100,
		},
	}
}

// Validate 验证配置
func (c *ServerConfig) Validate() error {
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("%w: send_queue_size must be positive", ErrInvalidConfig)
	}
	if c.PingInterval > 0 && c.PongTimeout > 0 && c.PingInterval >= c.PongTimeout {
		return fmt.Errorf("%w: ping_interval must be shorter than pong_timeout", ErrInvalidConfig)
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return nil
}
