package kafka

import "time"

// Config Kafka 配置
type Config struct {
	Brokers []string `mapstructure:"brokers" json:"brokers"`

	Producer ProducerConfig `mapstructure:"producer" json:"producer"`
	Consumer ConsumerConfig `mapstructure:"consumer" json:"consumer"`

	// 可选
	SASL *SASLConfig `mapstructure:"sasl" json:"sasl,omitempty"`
	TLS  *TLSConfig  `mapstructure:"tls" json:"tls,omitempty"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// 异步发送时 WriteMessages 不等待 broker 确认
	Async        bool          `mapstructure:"async" json:"async"`
	BatchSize    int           `mapstructure:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" json:"batch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries"`

	// 0: 不等待确认，1: Leader 确认，-1: 所有副本确认
	RequiredAcks int `mapstructure:"required_acks" json:"required_acks"`

	// none, gzip, snappy, lz4, zstd
	Compression  string        `mapstructure:"compression" json:"compression"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	GroupID  string        `mapstructure:"group_id" json:"group_id"`
	MinBytes int           `mapstructure:"min_bytes" json:"min_bytes"`
	MaxBytes int           `mapstructure:"max_bytes" json:"max_bytes"`
	MaxWait  time.Duration `mapstructure:"max_wait" json:"max_wait"`

	// 0 表示每条消息处理后同步提交
	CommitInterval time.Duration `mapstructure:"commit_interval" json:"commit_interval"`

	// -1: 最新，-2: 最早
	StartOffset int64 `mapstructure:"start_offset" json:"start_offset"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout" json:"session_timeout"`
	RebalanceTimeout  time.Duration `mapstructure:"rebalance_timeout" json:"rebalance_timeout"`
}

// SASLConfig SASL 认证配置
type SASLConfig struct {
	// PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism" json:"mechanism"`
	Username  string `mapstructure:"username" json:"username"`
	Password  string `mapstructure:"password" json:"password"`
}

// TLSConfig TLS 配置
type TLSConfig struct {
	Enable             bool   `mapstructure:"enable" json:"enable"`
	CertFile           string `mapstructure:"cert_file" json:"cert_file"`
	KeyFile            string `mapstructure:"key_file" json:"key_file"`
	CAFile             string `mapstructure:"ca_file" json:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// DefaultConfig 默认配置
// 实时推送场景从最新位置消费，低延迟优先于吞吐
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"localhost:9092"},
		Producer: ProducerConfig{
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
			MaxRetries:   3,
			RequiredAcks: 1,
			Compression:  "none",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
		Consumer: ConsumerConfig{
			GroupID:           "cargorelay",
			MinBytes:          1,
			MaxBytes:          10 << 20,
			MaxWait:           250 * time.Millisecond,
			CommitInterval:    time.Second,
			StartOffset:       -1,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
			RebalanceTimeout:  30 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Consumer.GroupID == "" {
		return ErrEmptyGroupID
	}
	switch c.Producer.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return ErrInvalidConfig
	}
	return nil
}
