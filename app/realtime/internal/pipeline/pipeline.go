// Package pipeline 串联入站消息的处理：归一化、状态更新、风险评估、ETA 预测、告警与扇出
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/prediction"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/risk"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/store"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
)

// Router 事件扇出
type Router interface {
	Route(ev *event.Envelope) int
}

// Sink 风险评估历史
type Sink interface {
	WriteAssessment(ctx context.Context, snap *container.Snapshot) error
}

// Escalator 把告警转发到外部系统
type Escalator interface {
	Escalate(ctx context.Context, alert event.Alert) error
}

// Pipeline 入站消息处理流水线
type Pipeline struct {
	normalizer *normalizer.Normalizer
	store      *store.Store
	engine     *risk.Engine
	factory    *event.Factory
	router     Router

	sink      Sink
	escalator Escalator
	// 历史写入与告警转发在后台执行，池满时丢弃
	background *conc.Pool[struct{}]

	metrics *metrics.Metrics
	logger  logger.Logger
}

// Option 选项
type Option func(*Pipeline)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithSink 写入评估历史
func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithEscalator critical 告警额外转发
func WithEscalator(e Escalator) Option {
	return func(p *Pipeline) {
		p.escalator = e
	}
}

// New 创建流水线
func New(n *normalizer.Normalizer, st *store.Store, engine *risk.Engine, factory *event.Factory, router Router, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: n,
		store:      st,
		engine:     engine,
		factory:    factory,
		router:     router,
		logger:     logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.background = conc.NewPool[struct{}](8,
		conc.WithNonBlocking(true),
		conc.WithPanicHandler(func(rec any) {
			p.logger.Error("pipeline background task panic", "panic", rec)
		}),
	)
	return p
}

// Handle 处理 broker 的一条消息，签名与 bridge.Handler 一致
func (p *Pipeline) Handle(ctx context.Context, channel string, payload []byte) error {
	_, err := p.Process(ctx, channel, payload)
	return err
}

// Process 处理并路由一条消息，返回按路由顺序排列的事件
func (p *Pipeline) Process(ctx context.Context, channel string, payload []byte) (events []*event.Envelope, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordPipeline(time.Since(start), err)
	}()

	res, err := p.normalizer.NormalizeResult(channel, payload)
	if err != nil {
		if errors.Is(err, normalizer.ErrMalformedMessage) || errors.Is(err, normalizer.ErrUnknownChannel) {
			p.metrics.RecordMalformed(channel)
		}
		return nil, err
	}

	events = res.Events
	if res.Container != nil {
		derived, err := p.applyContainer(ctx, res.Container)
		if err != nil {
			return nil, err
		}
		events = append(events, derived...)
	}

	for _, ev := range events {
		p.router.Route(ev)
	}
	return events, nil
}

type riskPayload struct {
	ContainerNumber string              `json:"containerNumber"`
	Score           float64             `json:"score"`
	Level           container.Level     `json:"level"`
	PreviousLevel   container.Level     `json:"previousLevel,omitempty"`
	Factors         []container.Factor  `json:"factors"`
	Anomalies       []container.Anomaly `json:"anomalies,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

type anomalyPayload struct {
	ContainerNumber string `json:"containerNumber"`
	container.Anomaly
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// applyContainer 在集装箱锁内合并更新并评估风险，锁外构造派生事件
func (p *Pipeline) applyContainer(ctx context.Context, cu *normalizer.ContainerUpdate) ([]*event.Envelope, error) {
	var prev *container.Assessment
	snap, err := p.store.Update(ctx, cu.ContainerID, func(cur *container.Snapshot) error {
		prev = cur.Risk
		cu.Update.Apply(cur, cu.ReceivedAt)
		a := p.engine.Assess(cur)
		cur.Risk = &a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: update %s: %w", cu.ContainerID, err)
	}

	a := snap.Risk
	p.metrics.RecordAssessment(string(a.Level))

	var prevLevel container.Level
	var prevAnomalies []container.Anomaly
	if prev != nil {
		prevLevel = prev.Level
		prevAnomalies = prev.Anomalies
	}

	room := event.ContainerRoom(snap.ID)
	var events []*event.Envelope

	riskEv, err := p.factory.New(event.TypeRiskUpdate, []string{room}, riskPayload{
		ContainerNumber: snap.ID,
		Score:           a.Score,
		Level:           a.Level,
		PreviousLevel:   prevLevel,
		Factors:         a.Factors,
		Anomalies:       a.Anomalies,
		Timestamp:       a.AssessedAt,
	})
	if err != nil {
		return nil, err
	}
	events = append(events, riskEv)

	if sev, ok := risk.AlertSeverity(prevLevel, a.Level); ok {
		alert := event.Alert{
			Severity:  sev,
			Message:   levelMessage(snap.ID, prevLevel, a.Level),
			SubjectID: snap.ID,
			Details: map[string]any{
				"score":         a.Score,
				"level":         a.Level,
				"previousLevel": prevLevel,
				"factors":       a.Factors,
			},
			Timestamp: a.AssessedAt,
		}
		alertEv, err := p.factory.NewAlert(alert, []string{room})
		if err != nil {
			return nil, err
		}
		events = append(events, alertEv)
		p.metrics.RecordAlert(string(sev))
		if sev == container.SeverityCritical {
			p.escalate(alert)
		}
	}

	for _, an := range a.Anomalies {
		// 持续存在的异常只在首次出现时通知
		if hasAnomaly(prevAnomalies, an.Kind) {
			continue
		}
		ev, err := p.factory.New(event.TypeAnomalyDetected, []string{room, event.RoomDashboardOperations}, anomalyPayload{
			ContainerNumber: snap.ID,
			Anomaly:         an,
			Location:        snap.Location,
			Timestamp:       a.AssessedAt,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		p.metrics.RecordAnomaly(an.Kind)
	}

	if snap.Destination != "" || snap.Route != (container.Route{}) {
		eta := prediction.PredictETA(prediction.InputFrom(snap), p.factory.Now())
		ev, err := p.factory.New(event.TypePredictionUpdate, []string{room}, eta)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	p.record(snap)
	return events, nil
}

func (p *Pipeline) record(snap *container.Snapshot) {
	if p.sink == nil {
		return
	}
	p.submit("write assessment history", snap.ID, 10*time.Second, func(ctx context.Context) error {
		return p.sink.WriteAssessment(ctx, snap)
	})
}

func (p *Pipeline) escalate(alert event.Alert) {
	if p.escalator == nil {
		return
	}
	p.submit("escalate alert", alert.SubjectID, 30*time.Second, func(ctx context.Context) error {
		return p.escalator.Escalate(ctx, alert)
	})
}

// submit 后台执行 fn，池满时跳过
func (p *Pipeline) submit(what, id string, timeout time.Duration, fn func(ctx context.Context) error) {
	f := p.background.Submit(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.logger.Warn(what+" failed", "container_id", id, "error", err)
		}
		return struct{}{}, nil
	})
	if f.Done() && f.Err() != nil {
		p.logger.Warn(what+" skipped", "container_id", id, "error", f.Err())
	}
}

// Close 释放后台任务池
func (p *Pipeline) Close() error {
	p.background.Release()
	return nil
}

func hasAnomaly(list []container.Anomaly, kind string) bool {
	return slices.ContainsFunc(list, func(a container.Anomaly) bool { return a.Kind == kind })
}

func levelMessage(id string, prev, next container.Level) string {
	if prev == "" {
		prev = container.LevelLow
	}
	if next.Rank() < prev.Rank() {
		return fmt.Sprintf("container %s risk eased from %s to %s", id, prev, next)
	}
	return fmt.Sprintf("container %s risk raised from %s to %s", id, prev, next)
}
