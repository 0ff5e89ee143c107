package bridge

import (
	"context"

	"github.com/lk2023060901/cargorelay/pkg/mq/mqtt"
)

// MQTTTransport 基于 MQTT，topic 为 prefix/channel
// paho 断线后自动重连并由客户端重新订阅，Subscribe 只在首次连接失败时返回错误
type MQTTTransport struct {
	client *mqtt.Client
	names  naming
}

// NewMQTTTransport 创建 transport
func NewMQTTTransport(client *mqtt.Client, prefix string) *MQTTTransport {
	return &MQTTTransport{client: client, names: naming{prefix: prefix, sep: "/"}}
}

func (t *MQTTTransport) Subscribe(ctx context.Context, channels []string, deliver DeliverFunc) error {
	for _, ch := range channels {
		if err := t.client.Subscribe(t.names.full(ch), func(topic string, payload []byte) {
			deliver(t.names.strip(topic), payload)
		}); err != nil {
			return unavailable(err, "mqtt subscribe %s", ch)
		}
	}
	if !t.client.IsConnected() {
		if err := t.client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return unavailable(err, "mqtt connect")
		}
	}

	<-ctx.Done()
	return nil
}

func (t *MQTTTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.client.Publish(ctx, t.names.full(channel), payload); err != nil {
		return unavailable(err, "mqtt publish %s", channel)
	}
	return nil
}

func (t *MQTTTransport) Close() error {
	return t.client.Close()
}
