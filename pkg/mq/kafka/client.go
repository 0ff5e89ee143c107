package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Client Kafka 客户端，按 topic 缓存生产者
type Client struct {
	config *Config
	sec    *security
	logger logger.Logger

	producers  map[string]*Producer
	producerMu sync.RWMutex

	consumers  []*ConsumerGroup
	consumerMu sync.Mutex

	middlewares []Middleware

	closed atomic.Bool
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConsumerMiddleware 添加消费者中间件
func WithConsumerMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// New 创建客户端，不主动连接 broker
func New(cfg *Config, opts ...ClientOption) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}
	sec, err := loadSecurity(newCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:    newCfg,
		sec:       sec,
		logger:    logger.NewNoop(),
		producers: make(map[string]*Producer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Producer 获取或创建 topic 的生产者
func (c *Client) Producer(topic string) (*Producer, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	c.producerMu.RLock()
	p, ok := c.producers[topic]
	c.producerMu.RUnlock()
	if ok {
		return p, nil
	}

	c.producerMu.Lock()
	defer c.producerMu.Unlock()
	if p, ok = c.producers[topic]; ok {
		return p, nil
	}

	p, err := newProducer(c, topic)
	if err != nil {
		return nil, err
	}
	c.producers[topic] = p
	c.logger.Debug("producer created", "topic", topic)
	return p, nil
}

// Publish 发布消息到 topic
func (c *Client) Publish(ctx context.Context, topic string, key, value []byte) error {
	p, err := c.Producer(topic)
	if err != nil {
		return err
	}
	return p.Publish(ctx, &Message{Key: key, Value: value})
}

// Subscribe 创建消费者组，调用方负责 Start
func (c *Client) Subscribe(topics []string, handler Handler) (*ConsumerGroup, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	if handler == nil {
		return nil, ErrNoHandler
	}

	cg, err := newConsumerGroup(c, topics, chain(handler, c.middlewares))
	if err != nil {
		return nil, err
	}

	c.consumerMu.Lock()
	c.consumers = append(c.consumers, cg)
	c.consumerMu.Unlock()

	c.logger.Info("consumer group created", "group_id", c.config.Consumer.GroupID, "topics", topics)
	return cg, nil
}

// HealthCheck 连接第一个 broker 并读取集群元数据
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	conn, err := c.sec.dialer().DialContext(ctx, "tcp", c.config.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Brokers()
	return err
}

// Close 关闭所有消费者与生产者
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	var errs []error

	c.consumerMu.Lock()
	for _, cg := range c.consumers {
		if err := cg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.consumers = nil
	c.consumerMu.Unlock()

	c.producerMu.Lock()
	for topic, p := range c.producers {
		if err := p.Close(); err != nil {
			c.logger.Error("failed to close producer", "topic", topic, "error", err)
			errs = append(errs, err)
		}
	}
	c.producers = nil
	c.producerMu.Unlock()

	return errors.Join(errs...)
}
