package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Point 一个时序数据点
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Client InfluxDB 写入客户端
type Client struct {
	config   *Config
	logger   logger.Logger
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	closed   atomic.Bool
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

// New 创建客户端
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
	}
	for _, opt := range opts {
		opt(c)
	}

	options := influxdb2.DefaultOptions()
	for k, v := range newCfg.DefaultTags {
		options.AddDefaultTag(k, v)
	}
	c.client = influxdb2.NewClientWithOptions(newCfg.URL, newCfg.Token, options)
	c.writeAPI = c.client.WriteAPIBlocking(newCfg.Org, newCfg.Bucket)
	return c, nil
}

// toWrite 转换为 SDK 的数据点，Time 为零时取当前时间
func (p Point) toWrite() (*write.Point, error) {
	if len(p.Fields) == 0 {
		return nil, ErrEmptyFields
	}
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(p.Measurement, p.Tags, p.Fields, ts), nil
}

// WritePoints 同步写入一批数据点
func (c *Client) WritePoints(ctx context.Context, points ...Point) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if len(points) == 0 {
		return nil
	}

	wps := make([]*write.Point, 0, len(points))
	for _, p := range points {
		wp, err := p.toWrite()
		if err != nil {
			return fmt.Errorf("influxdb: measurement %s: %w", p.Measurement, err)
		}
		wps = append(wps, wp)
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}
	if err := c.writeAPI.WritePoint(ctx, wps...); err != nil {
		return fmt.Errorf("influxdb: write: %w", err)
	}
	return nil
}

// Ping 检查服务是否可用
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb: %s not ready", c.config.URL)
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.client.Close()
	return nil
}
