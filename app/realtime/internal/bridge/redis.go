package bridge

import (
	"context"

	"github.com/lk2023060901/cargorelay/pkg/database/redis"
)

// RedisTransport 基于 redis Pub/Sub
type RedisTransport struct {
	client *redis.Client
	names  naming
}

// NewRedisTransport 频道名为 prefix:channel
func NewRedisTransport(client *redis.Client, prefix string) *RedisTransport {
	return &RedisTransport{client: client, names: naming{prefix: prefix, sep: ":"}}
}

func (t *RedisTransport) Subscribe(ctx context.Context, channels []string, deliver DeliverFunc) error {
	sub, err := t.client.Subscribe(ctx, t.names.fullAll(channels)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return unavailable(err, "redis subscribe")
	}
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return unavailable(err, "redis receive")
		}
		deliver(t.names.strip(msg.Channel), []byte(msg.Payload))
	}
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if _, err := t.client.Publish(ctx, t.names.full(channel), payload); err != nil {
		return unavailable(err, "redis publish %s", channel)
	}
	return nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}
