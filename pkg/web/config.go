package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Config Web 服务配置
type Config struct {
	// Addr 为空时不单独监听，通过 Handler 挂载到其他 http.Server
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	// 包含 "*" 时允许所有来源
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Mode:         gin.ReleaseMode,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			MaxAge:         12 * time.Hour,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}
