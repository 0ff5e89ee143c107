package kafka

import (
	"context"
	"sync/atomic"

	"github.com/segmentio/kafka-go"
)

// Producer 单 topic 生产者
type Producer struct {
	topic  string
	writer *kafka.Writer
	closed atomic.Bool
}

func newProducer(c *Client, topic string) (*Producer, error) {
	cfg := c.config.Producer

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		MaxAttempts:            cfg.MaxRetries + 1,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Async:                  cfg.Async,
		Compression:            parseCompression(cfg.Compression),
		AllowAutoTopicCreation: true,
	}

	if rt := c.sec.transport(); rt != nil {
		writer.Transport = rt
	}

	return &Producer{topic: topic, writer: writer}, nil
}

// Publish 发布单条消息，Key 相同的消息进入同一分区
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Value}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, km)
}

func (p *Producer) Topic() string { return p.topic }

// Close 刷新缓冲并关闭
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
