package kafka

import (
	"context"
	"time"
)

// Message 消息
type Message struct {
	Topic string

	// 同一 Key 路由到同一分区
	Key   []byte
	Value []byte

	Headers map[string]string

	// 消费时填充
	Partition int
	Offset    int64
	Timestamp time.Time
}

// Handler 消息处理器
type Handler func(ctx context.Context, msg *Message) error

// Middleware 消费者中间件
type Middleware func(Handler) Handler

// ConsumerStats 消费者统计
type ConsumerStats struct {
	MessagesConsumed  int64
	MessagesSucceeded int64
	MessagesFailed    int64
}
