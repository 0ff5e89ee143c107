// Package synthetic 演示与压测用的事件源，按 cron 调度向 broker 发布随机的集装箱、指标与告警消息
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Publisher 发布到 broker 频道
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

var (
	statuses    = []container.Status{container.StatusDeparted, container.StatusInTransit, container.StatusArriving, container.StatusDelivered}
	congestions = []container.Congestion{container.CongestionLow, container.CongestionMedium, container.CongestionHigh}
	carriers    = []string{"Maersk", "MSC", "Hapag-Lloyd", "Evergreen", "CMA CGM"}
	ports       = []string{"Singapore", "Los Angeles", "Rotterdam", "Hamburg", "Shanghai"}
	severities  = []string{"info", "warning", "critical"}
	messages    = []string{
		"container approaching demurrage threshold",
		"berth congestion rising",
		"new container arrived at port",
		"reefer temperature exceeded limits",
		"customs hold released",
	}
)

// Generator 演示数据生成器
type Generator struct {
	config  *Config
	pub     Publisher
	cron    *cron.Cron
	timeout time.Duration
	logger  logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option 选项
type Option func(*Generator)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New 创建生成器并注册调度，Start 之前不会发布
func New(cfg *Config, pub Publisher, opts ...Option) (*Generator, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("synthetic: merge config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("synthetic: %w", err)
	}

	seed := newCfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g := &Generator{
		config:  newCfg,
		pub:     pub,
		timeout: 5 * time.Second,
		logger:  logger.NewNoop(),
		rnd:     rand.New(rand.NewPCG(seed, seed>>1)),
	}
	for _, opt := range opts {
		opt(g)
	}
	cl := cronLogger{g.logger}
	g.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	jobs := []struct {
		schedule string
		name     string
		fn       func(context.Context) error
	}{
		{newCfg.ContainerSchedule, "container update", g.PublishContainerUpdate},
		{newCfg.MetricsSchedule, "metrics", g.PublishMetrics},
		{newCfg.AlertSchedule, "alert", g.PublishAlert},
	}
	for _, job := range jobs {
		if _, err := g.cron.AddFunc(job.schedule, g.run(job.name, job.fn)); err != nil {
			return nil, fmt.Errorf("synthetic: schedule %s %q: %w", job.name, job.schedule, err)
		}
	}
	return g, nil
}

func (g *Generator) run(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			g.logger.Warn("synthetic publish failed", "job", name, "error", err)
		}
	}
}

func (g *Generator) Start() error {
	g.logger.Info("synthetic generator started", "containers", len(g.config.Containers))
	g.cron.Start()
	return nil
}

// Stop 等待正在执行的任务结束
func (g *Generator) Stop() error {
	<-g.cron.Stop().Done()
	return nil
}

// PublishContainerUpdate 随机选一个集装箱发布状态更新
func (g *Generator) PublishContainerUpdate(ctx context.Context) error {
	if len(g.config.Containers) == 0 {
		return nil
	}

	g.mu.Lock()
	id := pick(g.rnd, g.config.Containers)
	update := map[string]any{
		"carrier":             pick(g.rnd, carriers),
		"location":            pick(g.rnd, ports),
		"destination":         pick(g.rnd, ports),
		"status":              pick(g.rnd, statuses),
		"hoursAtPort":         round(g.rnd.Float64()*200, 1),
		"portCongestion":      pick(g.rnd, congestions),
		"documentsIncomplete": g.rnd.Float64() < 0.2,
		"weatherDelay":        g.rnd.Float64() < 0.1,
		"temperature":         round(g.rnd.Float64()*30+10, 1),
		"humidity":            round(g.rnd.Float64()*40+40, 1),
		"route": map[string]any{
			"distanceKm":    round(g.rnd.Float64()*9000+500, 0),
			"durationHours": round(g.rnd.Float64()*400+24, 0),
		},
	}
	g.mu.Unlock()

	return g.pub.Publish(ctx, normalizer.ChannelContainers, map[string]any{
		"containerNumber": id,
		"update":          update,
	})
}

// PublishMetrics 运营指标与 KPI
func (g *Generator) PublishMetrics(ctx context.Context) error {
	g.mu.Lock()
	msg := map[string]any{
		"metrics": map[string]any{
			"throughput":   round(g.rnd.Float64()*1000+500, 1),
			"responseTime": round(g.rnd.Float64()*1000, 1),
			"errorRate":    round(g.rnd.Float64()*5, 2),
			"queueSize":    g.rnd.IntN(100),
		},
		"kpis": map[string]any{
			"containers":     g.rnd.IntN(100) + 1200,
			"onTimeDelivery": round(g.rnd.Float64()*10+90, 1),
			"costSavings":    round(g.rnd.Float64()*50000+800000, 0),
		},
	}
	g.mu.Unlock()
	return g.pub.Publish(ctx, normalizer.ChannelMetrics, msg)
}

// PublishAlert 按 AlertChance 决定是否发布
func (g *Generator) PublishAlert(ctx context.Context) error {
	g.mu.Lock()
	if g.rnd.Float64() >= g.config.AlertChance {
		g.mu.Unlock()
		return nil
	}
	msg := map[string]any{
		"severity": pick(g.rnd, severities),
		"message":  pick(g.rnd, messages),
		"source":   "synthetic",
	}
	if len(g.config.Containers) > 0 {
		msg["subjectId"] = pick(g.rnd, g.config.Containers)
	}
	g.mu.Unlock()
	return g.pub.Publish(ctx, normalizer.ChannelAlerts, msg)
}

// cronLogger 把 cron 的日志接到 logger.Logger
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}

func pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
