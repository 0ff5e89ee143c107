// Package bridge 连接外部 broker：订阅入站频道并分发给处理函数，向 broker 发布消息
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/pool/bytebuff"
	"github.com/lk2023060901/cargorelay/pkg/sentry"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
	"github.com/lk2023060901/cargorelay/pkg/util/shard"
)

// Handler 处理一条入站消息，返回的错误只记录日志
type Handler func(ctx context.Context, channel string, payload []byte) error

type inbound struct {
	channel string
	payload []byte
}

// peek 分发前只读取路由需要的字段
type peek struct {
	ContainerNumber string `json:"containerNumber"`
	ContainerID     string `json:"containerId"`
	Origin          string `json:"origin"`
}

// Bridge broker 桥接
type Bridge struct {
	config    *Config
	transport Transport
	handler   Handler
	channels  []string
	origin    string

	logger   logger.Logger
	metrics  *metrics.Metrics
	reporter sentry.Reporter
	bufs     *bytebuff.Pool

	// deliver 持读锁入队，Stop 持写锁关闭 lanes
	laneMu  sync.RWMutex
	lanes   []chan inbound
	stopped bool
	pool    *conc.Pool[struct{}]
	workers []*conc.Future[struct{}]

	ctx        context.Context
	cancel     context.CancelFunc
	workCtx    context.Context
	workCancel context.CancelFunc
	runFuture  *conc.Future[struct{}]
}

// Option 选项
type Option func(*Bridge)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithReporter 处理函数 panic 时上报
func WithReporter(r sentry.Reporter) Option {
	return func(b *Bridge) {
		if r != nil {
			b.reporter = r
		}
	}
}

// WithOrigin 当前实例 ID，携带相同 origin 的入站消息被丢弃
func WithOrigin(origin string) Option {
	return func(b *Bridge) {
		b.origin = origin
	}
}

// WithChannels 覆盖订阅的频道，默认订阅 normalizer.Channels
func WithChannels(channels ...string) Option {
	return func(b *Bridge) {
		b.channels = channels
	}
}

// WithBufferPool 共享编码缓冲池
func WithBufferPool(p *bytebuff.Pool) Option {
	return func(b *Bridge) {
		if p != nil {
			b.bufs = p
		}
	}
}

// New 创建桥接
func New(cfg *Config, transport Transport, handler Handler, opts ...Option) (*Bridge, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("bridge: merge config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	if handler == nil {
		return nil, ErrNoHandler
	}

	ctx, cancel := context.WithCancel(context.Background())
	workCtx, workCancel := context.WithCancel(context.Background())
	b := &Bridge{
		config:     newCfg,
		transport:  transport,
		handler:    handler,
		channels:   normalizer.Channels,
		logger:     logger.NewNoop(),
		reporter:   sentry.Nop{},
		bufs:       bytebuff.NewPool(),
		ctx:        ctx,
		cancel:     cancel,
		workCtx:    workCtx,
		workCancel: workCancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config 生效的配置
func (b *Bridge) Config() *Config {
	return b.config
}

// Start 启动 worker 与订阅循环
func (b *Bridge) Start() error {
	n := b.config.Workers
	depth := max(b.config.QueueSize/n, 1)

	b.pool = conc.NewPool[struct{}](n, conc.WithPanicHandler(func(rec any) {
		b.logger.Error("bridge worker panic", "panic", rec)
		b.reporter.CapturePanic(rec, map[string]string{"component": "bridge"})
	}))
	b.lanes = make([]chan inbound, n)
	b.workers = make([]*conc.Future[struct{}], n)
	for i := range b.lanes {
		lane := make(chan inbound, depth)
		b.lanes[i] = lane
		b.workers[i] = b.pool.Submit(func() (struct{}, error) {
			for msg := range lane {
				b.process(msg)
			}
			return struct{}{}, nil
		})
	}

	b.runFuture = conc.Go(func() (struct{}, error) {
		return struct{}{}, b.run()
	})

	b.logger.Info("bridge started",
		"transport", b.config.Transport,
		"channels", b.channels,
		"workers", n,
		"queue_depth", depth,
	)
	return nil
}

// Stop 停止订阅，处理完已入队的消息后关闭 transport
func (b *Bridge) Stop() error {
	b.cancel()
	if b.runFuture != nil {
		<-b.runFuture.Inner()
	}

	b.laneMu.Lock()
	if !b.stopped {
		b.stopped = true
		for _, lane := range b.lanes {
			close(lane)
		}
	}
	b.laneMu.Unlock()

	_ = conc.AwaitAll(b.workers...)
	b.workCancel()
	if b.pool != nil {
		b.pool.Release()
	}

	err := b.transport.Close()
	b.logger.Info("bridge stopped")
	return err
}

// run 订阅中断时按指数退避重连，直到 Stop
func (b *Bridge) run() error {
	backoff := b.config.ReconnectInitial
	for {
		started := time.Now()
		err := b.transport.Subscribe(b.ctx, b.channels, b.deliver)
		if b.ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = ErrBrokerUnavailable
		}
		// 订阅稳定运行过一段时间后重新从初始间隔开始
		if time.Since(started) >= b.config.ReconnectMax {
			backoff = b.config.ReconnectInitial
		}

		b.metrics.RecordReconnect()
		b.logger.Warn("broker subscription interrupted",
			"transport", b.config.Transport,
			"error", err,
			"retry_in", backoff,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-b.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, b.config.ReconnectMax)
	}
}

// deliver transport 回调，按集装箱 ID 选 lane 后入队，lane 满时阻塞
func (b *Bridge) deliver(channel string, payload []byte) {
	b.metrics.RecordReceived(channel)

	key := channel
	var p peek
	if err := json.Unmarshal(payload, &p); err == nil {
		if b.origin != "" && p.Origin == b.origin {
			b.logger.Debug("skip own republished message", "channel", channel)
			return
		}
		switch {
		case p.ContainerNumber != "":
			key = p.ContainerNumber
		case p.ContainerID != "":
			key = p.ContainerID
		}
	}

	b.laneMu.RLock()
	defer b.laneMu.RUnlock()
	if b.stopped || len(b.lanes) == 0 {
		return
	}
	select {
	case b.lanes[shard.Index(key, len(b.lanes))] <- inbound{channel: channel, payload: payload}:
	case <-b.ctx.Done():
	}
}

func (b *Bridge) process(msg inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("bridge handler panic", "channel", msg.channel, "panic", rec)
			b.reporter.CapturePanic(rec, map[string]string{
				"component": "bridge",
				"channel":   msg.channel,
			})
		}
	}()

	if err := b.handler(b.workCtx, msg.channel, msg.payload); err != nil {
		b.logger.Warn("inbound message rejected", "channel", msg.channel, "error", err)
	}
}

// Publish 发布到频道，[]byte 与 json.RawMessage 原样发送，其他值编码为 JSON
func (b *Bridge) Publish(ctx context.Context, channel string, v any) error {
	var payload []byte
	switch p := v.(type) {
	case []byte:
		payload = p
	case json.RawMessage:
		payload = p
	default:
		data, err := b.bufs.MarshalJSON(v)
		if err != nil {
			return fmt.Errorf("bridge: encode %s message: %w", channel, err)
		}
		payload = data
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.PublishTimeout)
	defer cancel()

	err := b.transport.Publish(ctx, channel, payload)
	b.metrics.RecordPublished(channel, err)
	if err != nil {
		b.logger.Warn("broker publish failed", "channel", channel, "error", err)
	}
	return err
}
