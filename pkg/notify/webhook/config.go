package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/notify"
)

// Config 通用 JSON Webhook 配置
type Config struct {
	// URL 为空时不发送
	URL string `mapstructure:"url" json:"url"`

	// Secret 非空时附带 X-Signature（HMAC-SHA256(timestamp + "\n" + body)）
	Secret string `mapstructure:"secret" json:"secret"`

	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// 5xx 与网络错误的重试次数
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" json:"retry_delay"`

	Headers map[string]string `mapstructure:"headers" json:"headers"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", notify.ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("%w: url must start with http:// or https://", notify.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", notify.ErrInvalidConfig)
	}
	return nil
}
