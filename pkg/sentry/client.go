package sentry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/cargorelay/pkg/config"
)

// Client Sentry 客户端，使用独立的 Hub
type Client struct {
	hub    *sentry.Hub
	config *Config
	closed atomic.Bool

	eventsTotal    atomic.Uint64
	eventsCaptured atomic.Uint64
	eventsDropped  atomic.Uint64
}

// Option 客户端选项
type Option func(*sentry.ClientOptions)

// WithTransport 替换上报通道
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = t
	}
}

// New 创建 Sentry 客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	co := newCfg.toClientOptions()
	for _, opt := range opts {
		opt(&co)
	}
	client, err := sentry.NewClient(co)
	if err != nil {
		return nil, fmt.Errorf("sentry: create client: %w", err)
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range newCfg.Tags {
			scope.SetTag(k, v)
		}
	})

	return &Client{hub: hub, config: newCfg}, nil
}

// Enabled 是否配置了 DSN
func (c *Client) Enabled() bool {
	return c.config.DSN != ""
}

func (c *Client) record(id *sentry.EventID) {
	c.eventsTotal.Add(1)
	if id != nil && *id != "" {
		c.eventsCaptured.Add(1)
	} else {
		c.eventsDropped.Add(1)
	}
}

// CaptureError 上报错误
func (c *Client) CaptureError(err error, tags map[string]string) {
	if err == nil || c.closed.Load() {
		return
	}
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		c.record(c.hub.CaptureException(err))
	})
}

// CapturePanic 上报已恢复的 panic，不重新抛出
func (c *Client) CapturePanic(recovered any, tags map[string]string) {
	if recovered == nil || c.closed.Load() {
		return
	}
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetLevel(sentry.LevelFatal)
		c.record(c.hub.Recover(recovered))
	})
}

// Flush 等待事件上报完成
func (c *Client) Flush(timeout time.Duration) bool {
	return c.hub.Flush(timeout)
}

// Close 刷新并关闭
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.hub.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.eventsTotal.Load(),
		EventsCaptured: c.eventsCaptured.Load(),
		EventsDropped:  c.eventsDropped.Load(),
	}
}
