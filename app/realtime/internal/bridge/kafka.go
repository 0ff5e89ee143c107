package bridge

import (
	"context"

	"github.com/lk2023060901/cargorelay/pkg/mq/kafka"
)

// KafkaTransport 基于 kafka 消费组，topic 为 prefix.channel
type KafkaTransport struct {
	client *kafka.Client
	names  naming
}

// NewKafkaTransport 创建 transport
func NewKafkaTransport(client *kafka.Client, prefix string) *KafkaTransport {
	return &KafkaTransport{client: client, names: naming{prefix: prefix, sep: "."}}
}

func (t *KafkaTransport) Subscribe(ctx context.Context, channels []string, deliver DeliverFunc) error {
	group, err := t.client.Subscribe(t.names.fullAll(channels), func(_ context.Context, msg *kafka.Message) error {
		deliver(t.names.strip(msg.Topic), msg.Value)
		return nil
	})
	if err != nil {
		return unavailable(err, "kafka subscribe")
	}
	defer group.Close()

	if err := group.Run(ctx); err != nil && ctx.Err() == nil {
		return unavailable(err, "kafka consume")
	}
	return nil
}

func (t *KafkaTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.client.Publish(ctx, t.names.full(channel), nil, payload); err != nil {
		return unavailable(err, "kafka publish %s", channel)
	}
	return nil
}

func (t *KafkaTransport) Close() error {
	return t.client.Close()
}
