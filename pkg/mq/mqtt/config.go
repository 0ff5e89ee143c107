package mqtt

import (
	"time"
)

// Config MQTT 配置
type Config struct {
	// tcp://host:1883 或 ssl://host:8883
	Brokers  []string `mapstructure:"brokers" json:"brokers"`
	ClientID string   `mapstructure:"client_id" json:"client_id"`
	Username string   `mapstructure:"username" json:"username"`
	Password string   `mapstructure:"password" json:"password"`

	QoS          byte `mapstructure:"qos" json:"qos"`
	CleanSession bool `mapstructure:"clean_session" json:"clean_session"`

	KeepAlive      time.Duration `mapstructure:"keep_alive" json:"keep_alive"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout" json:"ping_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" json:"publish_timeout"`

	// 首次连接失败时的退避区间
	RetryInitial time.Duration `mapstructure:"retry_initial" json:"retry_initial"`
	RetryMax     time.Duration `mapstructure:"retry_max" json:"retry_max"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers:        []string{"tcp://localhost:1883"},
		ClientID:       "cargorelay",
		QoS:            1,
		KeepAlive:      30 * time.Second,
		PingTimeout:    10 * time.Second,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
		RetryInitial:   500 * time.Millisecond,
		RetryMax:       30 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.ClientID == "" {
		return ErrEmptyClientID
	}
	if c.QoS > 2 {
		return ErrInvalidQoS
	}
	return nil
}
