// Package normalizer 把 broker 频道上的原始 JSON 转成统一事件信封
package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 入站频道（不含前缀）
const (
	ChannelContainers    = "containers"
	ChannelPredictions   = "predictions"
	ChannelAlerts        = "alerts"
	ChannelMetrics       = "metrics"
	ChannelNotifications = "notifications"
	ChannelBroadcasts    = "broadcasts"
)

// Channels 启动时订阅的全部频道
var Channels = []string{
	ChannelContainers,
	ChannelPredictions,
	ChannelAlerts,
	ChannelMetrics,
	ChannelNotifications,
	ChannelBroadcasts,
}

// HighRiskThreshold 预测风险超过该值时向 alerts:high-risk 发 critical 告警
const HighRiskThreshold = 0.7

// ContainerUpdate 交给流水线的集装箱状态更新
type ContainerUpdate struct {
	ContainerID string
	Update      container.Update
	ReceivedAt  time.Time
}

// Result 一条入站消息的归一化结果
type Result struct {
	Events []*event.Envelope
	// 仅 containers 频道非空
	Container *ContainerUpdate
}

// Normalizer 事件归一化器
type Normalizer struct {
	schemas map[string]*jsonschema.Schema
	factory *event.Factory
	logger  logger.Logger
}

// Option 选项
type Option func(*Normalizer)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// New 创建归一化器并编译内置 schema
func New(factory *event.Factory, opts ...Option) (*Normalizer, error) {
	schemas, err := compileSchemas(Channels)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		schemas: schemas,
		factory: factory,
		logger:  logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize 返回 channel 上一条消息产生的事件
func (n *Normalizer) Normalize(channel string, payload []byte) ([]*event.Envelope, error) {
	res, err := n.NormalizeResult(channel, payload)
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}

// NormalizeResult 校验并转换一条消息
func (n *Normalizer) NormalizeResult(channel string, payload []byte) (*Result, error) {
	schema, ok := n.schemas[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, channel, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, channel, err)
	}

	var (
		res *Result
		err error
		src = event.WithSource(channel)
	)
	switch channel {
	case ChannelContainers:
		res, err = n.containers(payload, src)
	case ChannelPredictions:
		res, err = n.predictions(payload, src)
	case ChannelAlerts:
		res, err = n.alerts(payload, src)
	case ChannelMetrics:
		res, err = n.metrics(payload, src)
	case ChannelNotifications:
		res, err = n.notifications(payload, src)
	case ChannelBroadcasts:
		res, err = n.broadcasts(payload, src)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

type containerMessage struct {
	ContainerNumber string          `json:"containerNumber"`
	ContainerID     string          `json:"containerId"`
	Update          json.RawMessage `json:"update"`
}

type statusDigest struct {
	ContainerNumber string            `json:"containerNumber"`
	Status          *container.Status `json:"status,omitempty"`
	Location        *string           `json:"location,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

func (n *Normalizer) containers(payload []byte, src event.Option) (*Result, error) {
	var msg containerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: containers: %v", ErrMalformedMessage, err)
	}
	id := msg.ContainerNumber
	if id == "" {
		id = msg.ContainerID
	}

	var upd container.Update
	if err := json.Unmarshal(msg.Update, &upd); err != nil {
		return nil, fmt.Errorf("%w: containers: %v", ErrMalformedMessage, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(msg.Update, &fields); err != nil {
		return nil, fmt.Errorf("%w: containers: %v", ErrMalformedMessage, err)
	}

	now := n.factory.Now()
	fields["containerNumber"] = id
	fields["timestamp"] = now

	update, err := n.factory.New(event.TypeContainerUpdate, []string{event.ContainerRoom(id)}, fields, src)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Events:    []*event.Envelope{update},
		Container: &ContainerUpdate{ContainerID: id, Update: upd, ReceivedAt: now},
	}

	if upd.HasStatusChange() {
		digest, err := n.factory.New(event.TypeContainerStatus, []string{event.RoomDashboardOperations}, statusDigest{
			ContainerNumber: id,
			Status:          upd.Status,
			Location:        upd.Location,
			Timestamp:       now,
		}, src)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, digest)
	}
	return res, nil
}

type predictionMessage struct {
	ContainerNumber string         `json:"containerNumber"`
	Predictions     map[string]any `json:"predictions"`
}

type predictionPayload struct {
	ContainerNumber string         `json:"containerNumber"`
	Predictions     map[string]any `json:"predictions"`
	Timestamp       time.Time      `json:"timestamp"`
}

type highRiskAlert struct {
	Type            string    `json:"type"`
	ContainerNumber string    `json:"containerNumber"`
	RiskScore       float64   `json:"riskScore"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

func (n *Normalizer) predictions(payload []byte, src event.Option) (*Result, error) {
	var msg predictionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: predictions: %v", ErrMalformedMessage, err)
	}

	now := n.factory.Now()
	ev, err := n.factory.New(event.TypePredictionUpdate, []string{event.ContainerRoom(msg.ContainerNumber)}, predictionPayload{
		ContainerNumber: msg.ContainerNumber,
		Predictions:     msg.Predictions,
		Timestamp:       now,
	}, src)
	if err != nil {
		return nil, err
	}
	res := &Result{Events: []*event.Envelope{ev}}

	if score, ok := msg.Predictions["riskScore"].(float64); ok && score > HighRiskThreshold {
		alert, err := n.factory.New(event.TypeAlertCritical, []string{event.RoomAlertsHighRisk}, highRiskAlert{
			Type:            "high_risk_container",
			ContainerNumber: msg.ContainerNumber,
			RiskScore:       score,
			Message:         fmt.Sprintf("High risk detected for container %s", msg.ContainerNumber),
			Timestamp:       now,
		}, src)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, alert)
	}
	return res, nil
}

type alertMessage struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Details   any    `json:"details"`
	SubjectID string `json:"subjectId"`
}

func (n *Normalizer) alerts(payload []byte, src event.Option) (*Result, error) {
	var msg alertMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: alerts: %v", ErrMalformedMessage, err)
	}
	ev, err := n.factory.NewAlert(event.Alert{
		Severity:  event.ParseSeverity(msg.Severity),
		Message:   msg.Message,
		SubjectID: msg.SubjectID,
		Details:   msg.Details,
	}, nil, src)
	if err != nil {
		return nil, err
	}
	return &Result{Events: []*event.Envelope{ev}}, nil
}

type metricsMessage struct {
	Metrics map[string]any `json:"metrics"`
	KPIs    map[string]any `json:"kpis"`
}

type metricsPayload struct {
	Metrics   map[string]any `json:"metrics"`
	Timestamp time.Time      `json:"timestamp"`
}

type kpiPayload struct {
	KPIs      map[string]any `json:"kpis"`
	Timestamp time.Time      `json:"timestamp"`
}

func (n *Normalizer) metrics(payload []byte, src event.Option) (*Result, error) {
	var msg metricsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: metrics: %v", ErrMalformedMessage, err)
	}

	now := n.factory.Now()
	res := &Result{}
	if msg.Metrics != nil {
		ev, err := n.factory.New(event.TypeMetricsUpdate, []string{event.RoomDashboardExecutive},
			metricsPayload{Metrics: msg.Metrics, Timestamp: now}, src)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, ev)
	}
	if msg.KPIs != nil {
		ev, err := n.factory.New(event.TypeKPIUpdate, []string{event.RoomDashboardOperations},
			kpiPayload{KPIs: msg.KPIs, Timestamp: now}, src)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, ev)
	}
	return res, nil
}

type notificationMessage struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type notificationPayload struct {
	Type      string    `json:"type,omitempty"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *Normalizer) notifications(payload []byte, src event.Option) (*Result, error) {
	var msg notificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: notifications: %v", ErrMalformedMessage, err)
	}

	room := event.RoomGlobal
	if msg.UserID != "" {
		room = event.UserRoom(msg.UserID)
	}
	ev, err := n.factory.New(event.TypeNotificationInfo, []string{room}, notificationPayload{
		Type:      msg.Type,
		Message:   msg.Message,
		Details:   msg.Details,
		Timestamp: n.factory.Now(),
	}, src)
	if err != nil {
		return nil, err
	}
	return &Result{Events: []*event.Envelope{ev}}, nil
}

func (n *Normalizer) broadcasts(payload []byte, src event.Option) (*Result, error) {
	var msg event.Broadcast
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: broadcasts: %v", ErrMalformedMessage, err)
	}
	// 发起实例已在本地投递过，信封只保留房间与内容
	msg.Origin = ""
	ev, err := n.factory.NewBroadcast(msg, src)
	if err != nil {
		return nil, err
	}
	return &Result{Events: []*event.Envelope{ev}}, nil
}
