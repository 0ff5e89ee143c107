package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"
)

// ConsumerGroup 消费者组，单协程拉取以保持分区内顺序
type ConsumerGroup struct {
	client  *Client
	topics  []string
	handler Handler
	reader  *kafka.Reader

	running    atomic.Bool
	autoCommit bool
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once

	consumed  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

func newConsumerGroup(c *Client, topics []string, handler Handler) (*ConsumerGroup, error) {
	cfg := c.config.Consumer

	readerCfg := kafka.ReaderConfig{
		Brokers:           c.config.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       topics,
		MinBytes:          cfg.MinBytes,
		MaxBytes:          cfg.MaxBytes,
		MaxWait:           cfg.MaxWait,
		StartOffset:       cfg.StartOffset,
		CommitInterval:    cfg.CommitInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		SessionTimeout:    cfg.SessionTimeout,
		RebalanceTimeout:  cfg.RebalanceTimeout,
	}
	if c.sec != nil {
		readerCfg.Dialer = c.sec.dialer()
	}

	return &ConsumerGroup{
		client:     c,
		topics:     topics,
		handler:    handler,
		reader:     kafka.NewReader(readerCfg),
		autoCommit: cfg.CommitInterval > 0,
		done:       make(chan struct{}),
	}, nil
}

func (cg *ConsumerGroup) Topics() []string { return cg.topics }

// Start 启动后台消费，ctx 取消或 Close 时退出
func (cg *ConsumerGroup) Start(ctx context.Context) error {
	if !cg.running.CompareAndSwap(false, true) {
		return ErrConsumerAlreadyRunning
	}
	ctx, cg.cancel = context.WithCancel(ctx)
	go cg.consume(ctx)
	return nil
}

// Run 阻塞消费直到 ctx 取消或 reader 关闭
func (cg *ConsumerGroup) Run(ctx context.Context) error {
	if !cg.running.CompareAndSwap(false, true) {
		return ErrConsumerAlreadyRunning
	}
	ctx, cg.cancel = context.WithCancel(ctx)
	return cg.consume(ctx)
}

func (cg *ConsumerGroup) consume(ctx context.Context) error {
	defer close(cg.done)
	log := cg.client.logger

	for {
		km, err := cg.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			log.Warn("kafka fetch failed", "topics", cg.topics, "error", err)
			return err
		}
		cg.consumed.Add(1)

		msg := &Message{
			Topic:     km.Topic,
			Key:       km.Key,
			Value:     km.Value,
			Partition: km.Partition,
			Offset:    km.Offset,
			Timestamp: km.Time,
			Headers:   make(map[string]string, len(km.Headers)),
		}
		for _, h := range km.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		if err := cg.handler(ctx, msg); err != nil {
			cg.failed.Add(1)
		} else {
			cg.succeeded.Add(1)
		}

		// 实时推送不重放失败消息，处理结果不影响提交
		if !cg.autoCommit {
			if err := cg.reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
				log.Warn("kafka commit failed", "topic", km.Topic, "offset", km.Offset, "error", err)
			}
		}
	}
}

// Stats 消费统计
func (cg *ConsumerGroup) Stats() ConsumerStats {
	return ConsumerStats{
		MessagesConsumed:  cg.consumed.Load(),
		MessagesSucceeded: cg.succeeded.Load(),
		MessagesFailed:    cg.failed.Load(),
	}
}

// Close 停止消费并关闭 reader
func (cg *ConsumerGroup) Close() error {
	var err error
	cg.closeOnce.Do(func() {
		if cg.cancel != nil {
			cg.cancel()
		}
		err = cg.reader.Close()
		if cg.running.Load() {
			<-cg.done
		}
	})
	return err
}
