package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// MessageHandler 收到消息时回调，在 paho 的回调协程中执行
type MessageHandler func(topic string, payload []byte)

// Client MQTT 客户端
// 订阅在每次(重)连接成功后自动恢复
type Client struct {
	config *Config
	logger logger.Logger
	inner  paho.Client

	mu   sync.RWMutex
	subs map[string]MessageHandler

	closed atomic.Bool
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建客户端，需调用 Connect 建立连接
func New(cfg *Config, opts ...Option) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: newCfg,
		logger: logger.NewNoop(),
		subs:   make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	po := paho.NewClientOptions().
		SetClientID(newCfg.ClientID).
		SetOrderMatters(true).
		SetCleanSession(newCfg.CleanSession).
		SetKeepAlive(newCfg.KeepAlive).
		SetPingTimeout(newCfg.PingTimeout).
		SetConnectTimeout(newCfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(newCfg.RetryMax)
	for _, b := range newCfg.Brokers {
		po.AddBroker(b)
	}
	if newCfg.Username != "" {
		po.SetUsername(newCfg.Username)
	}
	if newCfg.Password != "" {
		po.SetPassword(newCfg.Password)
	}
	po.SetOnConnectHandler(c.onConnect)
	po.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.inner = paho.NewClient(po)
	return c, nil
}

func (c *Client) onConnect(pc paho.Client) {
	c.logger.Info("mqtt connected", "brokers", c.config.Brokers)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, h := range c.subs {
		if err := c.subscribe(pc, topic, h); err != nil {
			c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (c *Client) subscribe(pc paho.Client, topic string, h MessageHandler) error {
	token := pc.Subscribe(topic, c.config.QoS, func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("mqtt: subscribe %s: timeout", topic)
	}
	return token.Error()
}

// Connect 连接 broker，失败时指数退避直到成功或 ctx 取消
func (c *Client) Connect(ctx context.Context) error {
	backoff := c.config.RetryInitial
	for {
		if c.closed.Load() {
			return ErrClientClosed
		}
		token := c.inner.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			return nil
		}

		c.logger.Warn("mqtt connect failed", "error", err, "retry_in", backoff)
		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, c.config.RetryMax)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe 订阅 topic；已连接时立即生效，否则在连接后生效
func (c *Client) Subscribe(topic string, h MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()

	if !c.inner.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(c.inner, topic, h)
}

// Publish 发布消息并等待确认（QoS > 0）
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.inner.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.inner.Publish(topic, c.config.QoS, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.config.PublishTimeout):
		return ErrPublishTimeout
	}
}

// IsConnected 连接是否可用
func (c *Client) IsConnected() bool {
	return c.inner.IsConnectionOpen()
}

// Close 断开连接
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.inner.Disconnect(250)
	return nil
}
