// Package metrics realtime 服务指标
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/metrics/sliding"
	promclient "github.com/lk2023060901/cargorelay/pkg/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// Config 指标配置
type Config struct {
	// SystemCollectInterval 进程资源采集间隔（/health 使用）
	SystemCollectInterval time.Duration `mapstructure:"system_collect_interval"`
	// SlidingWindow 流水线处理速率与延迟窗口
	SlidingWindow sliding.WindowConfig `mapstructure:"sliding_window"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		SystemCollectInterval: 5 * time.Second,
		SlidingWindow:         *sliding.DefaultWindowConfig(),
	}
}

// Metrics realtime 服务指标，nil 接收者上的方法都是空操作
type Metrics struct {
	config *Config

	// broker
	BridgeReceived   *prometheus.CounterVec // 入站消息数（按频道）
	BridgeMalformed  *prometheus.CounterVec // 解析失败数（按频道）
	BridgePublished  *prometheus.CounterVec // 发布数（按频道、结果）
	BridgeReconnects prometheus.Counter

	// 扇出
	RouterEvents    *prometheus.CounterVec // 路由的事件数（按类型）
	RouterDelivered prometheus.Counter
	RouterFailed    *prometheus.CounterVec // 投递失败（按原因）

	// 风险
	RiskAssessments *prometheus.CounterVec // 评估次数（按等级）
	Alerts          *prometheus.CounterVec // 告警数（按级别）
	Anomalies       *prometheus.CounterVec // 异常数（按类型）

	PipelineDuration prometheus.Histogram

	// 发布池已满而未转发到 broker 的广播数
	RepublishSkipped prometheus.Counter

	dropped atomic.Uint64
	window  *sliding.Window
}

// New 创建并注册指标
func New(cfg *Config, reg prometheus.Registerer) (*Metrics, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("metrics: merge config: %w", err)
	}
	window, err := sliding.NewWindow(&newCfg.SlidingWindow)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		config: newCfg,
		window: window,

		BridgeReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "bridge",
			Name:      "messages_received_total",
			Help:      "broker 入站消息数",
		}, []string{"channel"}),
		BridgeMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "bridge",
			Name:      "messages_malformed_total",
			Help:      "无法解析或未通过 schema 校验的消息数",
		}, []string{"channel"}),
		BridgePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "bridge",
			Name:      "messages_published_total",
			Help:      "发布到 broker 的消息数",
		}, []string{"channel", "result"}),
		BridgeReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "bridge",
			Name:      "reconnects_total",
			Help:      "broker 重连次数",
		}),

		RouterEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "router",
			Name:      "events_total",
			Help:      "路由的事件数",
		}, []string{"type"}),
		RouterDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "router",
			Name:      "deliveries_total",
			Help:      "成功入队的投递数",
		}),
		RouterFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "router",
			Name:      "delivery_failures_total",
			Help:      "投递失败数",
		}, []string{"reason"}),

		RiskAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "风险评估次数",
		}, []string{"level"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "risk",
			Name:      "alerts_total",
			Help:      "等级变化触发的告警数",
		}, []string{"severity"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "risk",
			Name:      "anomalies_total",
			Help:      "检测到的异常数",
		}, []string{"type"}),

		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "单条入站消息处理耗时（秒）",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		RepublishSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "broadcast_republish_skipped_total",
			Help:      "发布池已满而未转发的广播数",
		}),
	}

	if reg != nil {
		if err := m.register(reg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	var err error
	if m.BridgeReceived, err = promclient.Register(reg, m.BridgeReceived); err != nil {
		return err
	}
	if m.BridgeMalformed, err = promclient.Register(reg, m.BridgeMalformed); err != nil {
		return err
	}
	if m.BridgePublished, err = promclient.Register(reg, m.BridgePublished); err != nil {
		return err
	}
	if m.BridgeReconnects, err = promclient.Register(reg, m.BridgeReconnects); err != nil {
		return err
	}
	if m.RouterEvents, err = promclient.Register(reg, m.RouterEvents); err != nil {
		return err
	}
	if m.RouterDelivered, err = promclient.Register(reg, m.RouterDelivered); err != nil {
		return err
	}
	if m.RouterFailed, err = promclient.Register(reg, m.RouterFailed); err != nil {
		return err
	}
	if m.RiskAssessments, err = promclient.Register(reg, m.RiskAssessments); err != nil {
		return err
	}
	if m.Alerts, err = promclient.Register(reg, m.Alerts); err != nil {
		return err
	}
	if m.Anomalies, err = promclient.Register(reg, m.Anomalies); err != nil {
		return err
	}
	if m.PipelineDuration, err = promclient.Register(reg, m.PipelineDuration); err != nil {
		return err
	}
	if m.RepublishSkipped, err = promclient.Register(reg, m.RepublishSkipped); err != nil {
		return err
	}
	return nil
}

// Config 生效的配置
func (m *Metrics) Config() *Config {
	if m == nil {
		return DefaultConfig()
	}
	return m.config
}

func (m *Metrics) RecordReceived(channel string) {
	if m != nil {
		m.BridgeReceived.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) RecordMalformed(channel string) {
	if m != nil {
		m.BridgeMalformed.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) RecordPublished(channel string, err error) {
	if m != nil {
		m.BridgePublished.WithLabelValues(channel, result(err)).Inc()
	}
}

func (m *Metrics) RecordReconnect() {
	if m != nil {
		m.BridgeReconnects.Inc()
	}
}

// RecordRouted 一次路由的结果
func (m *Metrics) RecordRouted(typ string, delivered int) {
	if m != nil {
		m.RouterEvents.WithLabelValues(typ).Inc()
		m.RouterDelivered.Add(float64(delivered))
	}
}

// RecordDeliveryFailure reason: queue_full / closed / missing
func (m *Metrics) RecordDeliveryFailure(reason string) {
	if m != nil {
		m.RouterFailed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordRepublishSkipped() {
	if m != nil {
		m.RepublishSkipped.Inc()
	}
}

// RecordDropped 出站消息因背压被丢弃（被挤出或被拒绝）
func (m *Metrics) RecordDropped() {
	if m != nil {
		m.dropped.Add(1)
	}
}

// Dropped 累计因背压丢弃的消息数
func (m *Metrics) Dropped() uint64 {
	if m == nil {
		return 0
	}
	return m.dropped.Load()
}

func (m *Metrics) RecordAssessment(level string) {
	if m != nil {
		m.RiskAssessments.WithLabelValues(level).Inc()
	}
}

func (m *Metrics) RecordAlert(severity string) {
	if m != nil {
		m.Alerts.WithLabelValues(severity).Inc()
	}
}

func (m *Metrics) RecordAnomaly(kind string) {
	if m != nil {
		m.Anomalies.WithLabelValues(kind).Inc()
	}
}

// RecordPipeline 记录一条消息的处理耗时
func (m *Metrics) RecordPipeline(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PipelineDuration.Observe(d.Seconds())
	m.window.Record(d, err == nil)
}

// PipelineStats 滑动窗口内的处理速率与延迟
func (m *Metrics) PipelineStats() sliding.Stats {
	if m == nil {
		return sliding.Stats{}
	}
	return m.window.Stats()
}

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
