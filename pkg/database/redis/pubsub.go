package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Message 订阅收到的消息
type Message struct {
	Channel string
	Payload string
}

// Subscription 频道订阅，断线时 go-redis 自动重连并重新订阅
type Subscription struct {
	ps *redis.PubSub
}

// Publish 发布消息，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, channel string, message any) (int64, error) {
	n, err := c.master.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return n, nil
}

// Subscribe 订阅频道，等待服务端确认后返回
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	ps := c.master.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}
	return &Subscription{ps: ps}, nil
}

// ReceiveMessage 阻塞读取下一条消息
func (s *Subscription) ReceiveMessage(ctx context.Context) (*Message, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return &Message{Channel: msg.Channel, Payload: msg.Payload}, nil
}

// Close 取消订阅
func (s *Subscription) Close() error {
	return s.ps.Close()
}
