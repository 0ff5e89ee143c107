package bridge

import (
	"time"

	"github.com/lk2023060901/cargorelay/pkg/database/redis"
	"github.com/lk2023060901/cargorelay/pkg/mq/kafka"
	"github.com/lk2023060901/cargorelay/pkg/mq/mqtt"
)

// transport 类型
const (
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
	TransportMQTT   = "mqtt"
	TransportMemory = "memory"
)

// Config broker 桥接配置
type Config struct {
	// redis / kafka / mqtt / memory
	Transport string `mapstructure:"transport" validate:"omitempty,oneof=redis kafka mqtt memory"`
	// 频道名前缀：redis 为 realtime:containers，kafka 为 realtime.containers，mqtt 为 realtime/containers
	Prefix string `mapstructure:"prefix"`

	// 处理入站消息的 worker 数，同一集装箱的消息总是落在同一个 worker
	Workers int `mapstructure:"workers" validate:"omitempty,min=1"`
	// 入站队列总容量，平均分给各 worker
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,min=1"`

	// 订阅中断后的重连退避
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`

	// 发布超时
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	// 网关转发广播的并发发布数
	PublishWorkers int `mapstructure:"publish_workers" validate:"omitempty,min=1"`

	Redis *redis.Config `mapstructure:"redis"`
	Kafka *kafka.Config `mapstructure:"kafka"`
	MQTT  *mqtt.Config  `mapstructure:"mqtt"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Transport:        TransportRedis,
		Prefix:           "realtime",
		Workers:          16,
		QueueSize:        4096,
		ReconnectInitial: 500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
		PublishTimeout:   5 * time.Second,
		PublishWorkers:   8,
	}
}
