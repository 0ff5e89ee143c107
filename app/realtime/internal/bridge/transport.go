package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/cargorelay/pkg/database/redis"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/mq/kafka"
	"github.com/lk2023060901/cargorelay/pkg/mq/mqtt"
)

// DeliverFunc transport 收到消息后的回调，channel 为去掉前缀后的频道名
type DeliverFunc func(channel string, payload []byte)

// Transport broker 适配层
type Transport interface {
	// Subscribe 订阅频道并阻塞，直到 ctx 取消（返回 nil）或订阅中断（返回 ErrBrokerUnavailable）
	Subscribe(ctx context.Context, channels []string, deliver DeliverFunc) error
	// Publish 发布到频道，channel 不带前缀
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// NewTransport 按配置创建 transport
// node 为本实例标识，kafka 消费组与 mqtt 客户端 ID 追加该后缀，每个实例都收到全部消息
func NewTransport(cfg *Config, node string, log logger.Logger) (Transport, error) {
	if log == nil {
		log = logger.NewNoop()
	}
	switch cfg.Transport {
	case TransportRedis:
		if cfg.Redis == nil {
			return nil, errors.Wrap(ErrUnknownTransport, "redis config missing")
		}
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "bridge: create redis client")
		}
		return NewRedisTransport(client, cfg.Prefix), nil
	case TransportKafka:
		kl := log.Named("kafka")
		client, err := kafka.New(kafkaConfigFor(cfg.Kafka, node),
			kafka.WithLogger(kl),
			kafka.WithConsumerMiddleware(kafka.RecoveryMiddleware(kl, nil), kafka.LoggingMiddleware(kl)),
		)
		if err != nil {
			return nil, errors.Wrap(err, "bridge: create kafka client")
		}
		return NewKafkaTransport(client, cfg.Prefix), nil
	case TransportMQTT:
		client, err := mqtt.New(mqttConfigFor(cfg.MQTT, node), mqtt.WithLogger(log.Named("mqtt")))
		if err != nil {
			return nil, errors.Wrap(err, "bridge: create mqtt client")
		}
		return NewMQTTTransport(client, cfg.Prefix), nil
	case TransportMemory:
		return NewMemoryTransport(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownTransport, "%q", cfg.Transport)
	}
}

// kafkaConfigFor 复制配置并把消费组改为 <group>-<node>，不修改 cfg
func kafkaConfigFor(cfg *kafka.Config, node string) *kafka.Config {
	out := &kafka.Config{}
	if cfg != nil {
		c := *cfg
		out = &c
	}
	out.Consumer.GroupID = withNode(out.Consumer.GroupID, kafka.DefaultConfig().Consumer.GroupID, node)
	return out
}

// mqttConfigFor 复制配置并把客户端 ID 改为 <client_id>-<node>，不修改 cfg
func mqttConfigFor(cfg *mqtt.Config, node string) *mqtt.Config {
	out := &mqtt.Config{}
	if cfg != nil {
		c := *cfg
		out = &c
	}
	out.ClientID = withNode(out.ClientID, mqtt.DefaultConfig().ClientID, node)
	return out
}

func withNode(base, fallback, node string) string {
	if base == "" {
		base = fallback
	}
	if node == "" {
		return base
	}
	return base + "-" + node
}

// unavailable 包装 broker 错误，使其同时匹配 ErrBrokerUnavailable 与原始错误
func unavailable(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrBrokerUnavailable, errors.Wrapf(err, format, args...))
}

// naming 前缀与分隔符
type naming struct {
	prefix string
	sep    string
}

func (n naming) full(channel string) string {
	if n.prefix == "" {
		return channel
	}
	return n.prefix + n.sep + channel
}

func (n naming) strip(name string) string {
	if n.prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, n.prefix+n.sep)
}

func (n naming) fullAll(channels []string) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = n.full(ch)
	}
	return out
}
