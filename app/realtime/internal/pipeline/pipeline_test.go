package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/risk"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/store"
	"github.com/lk2023060901/cargorelay/pkg/database/influxdb"
	"github.com/lk2023060901/cargorelay/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

type captureRouter struct {
	mu     sync.Mutex
	routed []*event.Envelope
}

func (r *captureRouter) Route(ev *event.Envelope) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, ev)
	return 1
}

func (r *captureRouter) ofType(typ event.Type) []*event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*event.Envelope
	for _, ev := range r.routed {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *captureRouter) reset() {
	r.mu.Lock()
	r.routed = nil
	r.mu.Unlock()
}

type captureEscalator struct {
	mu     sync.Mutex
	alerts []event.Alert
}

func (e *captureEscalator) Escalate(_ context.Context, a event.Alert) error {
	e.mu.Lock()
	e.alerts = append(e.alerts, a)
	e.mu.Unlock()
	return nil
}

func (e *captureEscalator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.alerts)
}

type capturePoints struct {
	mu     sync.Mutex
	points []influxdb.Point
}

func (c *capturePoints) WritePoints(_ context.Context, points ...influxdb.Point) error {
	c.mu.Lock()
	c.points = append(c.points, points...)
	c.mu.Unlock()
	return nil
}

func (c *capturePoints) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.points)
}

type fixture struct {
	pipeline  *Pipeline
	router    *captureRouter
	escalator *captureEscalator
	points    *capturePoints
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	factory := event.NewFactory(nil, event.WithClock(clock))
	n, err := normalizer.New(factory)
	require.NoError(t, err)
	st, err := store.New(nil, nil)
	require.NoError(t, err)
	m, err := metrics.New(nil, prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		router:    &captureRouter{},
		escalator: &captureEscalator{},
		points:    &capturePoints{},
		metrics:   m,
	}
	f.pipeline = New(n, st, risk.NewEngine(risk.WithClock(clock)), factory, f.router,
		WithMetrics(m),
		WithEscalator(f.escalator),
		WithSink(NewInfluxSink(f.points)),
	)
	t.Cleanup(func() { _ = f.pipeline.Close() })
	return f
}

func containerMsg(t *testing.T, id string, update map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"containerNumber": id, "update": update})
	require.NoError(t, err)
	return data
}

func payloadOf(t *testing.T, ev *event.Envelope) map[string]any {
	t.Helper()
	var frame struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ev.Frame(), &frame))
	return frame.Data
}

func TestPipeline_CriticalContainerRaisesCriticalAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "MSKU1234567", map[string]any{
		"hoursAtPort":         200,
		"portCongestion":      "high",
		"documentsIncomplete": true,
	}))
	require.NoError(t, err)

	riskEvents := f.router.ofType(event.TypeRiskUpdate)
	require.Len(t, riskEvents, 1)
	data := payloadOf(t, riskEvents[0])
	assert.Equal(t, 0.92, data["score"])
	assert.Equal(t, "critical", data["level"])
	assert.Equal(t, []string{"container:MSKU1234567"}, riskEvents[0].Rooms)

	alerts := f.router.ofType(event.TypeAlertCritical)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, event.PriorityCritical, alert.Priority)
	for _, room := range []string{event.RoomAlertsAll, event.RoomAlertsCritical, event.RoomRoleAdmin, event.RoomRoleExecutive, "container:MSKU1234567"} {
		assert.Contains(t, alert.Rooms, room)
	}
	data = payloadOf(t, alert)
	assert.Equal(t, "critical", data["severity"])
	assert.Equal(t, "MSKU1234567", data["subjectId"])

	require.Eventually(t, func() bool { return f.escalator.count() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return f.points.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Alerts.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RiskAssessments.WithLabelValues("critical")))

	// 等级未变化不再告警
	f.router.reset()
	_, err = f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "MSKU1234567", map[string]any{"hoursAtPort": 210}))
	require.NoError(t, err)
	assert.Empty(t, f.router.ofType(event.TypeAlertCritical))
	assert.Len(t, f.router.ofType(event.TypeRiskUpdate), 1)
	assert.Equal(t, 1, f.escalator.count())
}

func TestPipeline_FallingLevelEmitsInfoAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "C1", map[string]any{
		"hoursAtPort":    130,
		"portCongestion": "medium",
	}))
	require.NoError(t, err)
	warnings := f.router.ofType(event.TypeAlertWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Rooms, event.RoomRoleOperations)

	f.router.reset()
	_, err = f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "C1", map[string]any{
		"hoursAtPort":    10,
		"portCongestion": "low",
	}))
	require.NoError(t, err)
	infos := f.router.ofType(event.TypeNotificationInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, []string{event.RoomAlertsAll, "container:C1"}, infos[0].Rooms)
	assert.Equal(t, "info", payloadOf(t, infos[0])["severity"])
	assert.Zero(t, f.escalator.count())
}

func TestPipeline_AnomalyReportedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "C2", map[string]any{"temperature": 31.5, "location": "Antwerp"}))
	require.NoError(t, err)

	anomalies := f.router.ofType(event.TypeAnomalyDetected)
	require.Len(t, anomalies, 1)
	assert.Equal(t, []string{"container:C2", event.RoomDashboardOperations}, anomalies[0].Rooms)
	data := payloadOf(t, anomalies[0])
	assert.Equal(t, "temperature_anomaly", data["type"])
	assert.Equal(t, "Antwerp", data["location"])

	f.router.reset()
	_, err = f.pipeline.Process(ctx, normalizer.ChannelContainers, containerMsg(t, "C2", map[string]any{"temperature": 32}))
	require.NoError(t, err)
	assert.Empty(t, f.router.ofType(event.TypeAnomalyDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Anomalies.WithLabelValues("temperature_anomaly")))
}

func TestPipeline_PredictionWhenRouteKnown(t *testing.T) {
	f := newFixture(t)

	events, err := f.pipeline.Process(context.Background(), normalizer.ChannelContainers, containerMsg(t, "C3", map[string]any{
		"carrier":     "Maersk",
		"destination": "Rotterdam",
		"route":       map[string]any{"distanceKm": 704},
	}))
	require.NoError(t, err)

	preds := f.router.ofType(event.TypePredictionUpdate)
	require.Len(t, preds, 1)
	data := payloadOf(t, preds[0])
	assert.Equal(t, "C3", data["containerNumber"])
	assert.Equal(t, 20.0, data["baseHours"])
	assert.Equal(t, 0.942, data["confidence"])

	// 返回值与路由顺序一致，首个为 container:update
	assert.Equal(t, event.TypeContainerUpdate, events[0].Type)
	assert.Len(t, f.router.routed, len(events))
}

func TestPipeline_MalformedIsCountedNotRouted(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Process(context.Background(), normalizer.ChannelContainers, []byte(`{"containerNumber":`))
	assert.ErrorIs(t, err, normalizer.ErrMalformedMessage)
	assert.Empty(t, f.router.routed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BridgeMalformed.WithLabelValues("containers")))

	stats := f.metrics.PipelineStats()
	assert.Equal(t, int64(1), stats.Failures)
}

func TestPipeline_NonContainerChannelRoutesOnly(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.Handle(context.Background(), normalizer.ChannelAlerts, []byte(`{"severity":"critical","message":"terminal strike"}`))
	require.NoError(t, err)
	require.Len(t, f.router.routed, 1)
	assert.Equal(t, event.TypeAlertCritical, f.router.routed[0].Type)
	assert.Empty(t, f.router.ofType(event.TypeRiskUpdate))
}

func TestAssessmentPoint(t *testing.T) {
	temp := 4.5
	snap := &container.Snapshot{
		ID:          "C4",
		Carrier:     "MSC",
		Status:      container.StatusArriving,
		HoursAtPort: 80,
		Temperature: &temp,
		Risk: &container.Assessment{
			Score:      0.22,
			Level:      container.LevelCaution,
			Factors:    []container.Factor{{Name: "time_at_port", Weight: 0.2}},
			AssessedAt: now,
		},
	}
	p := assessmentPoint(snap)
	assert.Equal(t, MeasurementRisk, p.Measurement)
	assert.Equal(t, map[string]string{"container_id": "C4", "level": "caution", "carrier": "MSC", "status": "arriving"}, p.Tags)
	assert.Equal(t, 0.22, p.Fields["score"])
	assert.Equal(t, 0.2, p.Fields["factor_time_at_port"])
	assert.Equal(t, 4.5, p.Fields["temperature"])
	assert.Equal(t, now, p.Time)

	// 未评估的快照不写入
	c := &capturePoints{}
	require.NoError(t, NewInfluxSink(c).WriteAssessment(context.Background(), &container.Snapshot{ID: "C5"}))
	assert.Zero(t, c.count())
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Alert
}

func (c *countingNotifier) Send(_ context.Context, a *notify.Alert) error {
	c.mu.Lock()
	c.sent = append(c.sent, a)
	c.mu.Unlock()
	return nil
}

func (c *countingNotifier) Name() string { return "counting" }

func TestWebhookEscalator_ThrottlesRepeats(t *testing.T) {
	inner := &countingNotifier{}
	esc := NewWebhookEscalator(notify.NewThrottle(inner, time.Minute), "cargorelay")

	alert := event.Alert{
		Severity:  container.SeverityCritical,
		Message:   "container MSKU1234567 risk raised from low to critical",
		SubjectID: "MSKU1234567",
		Timestamp: now,
	}
	require.NoError(t, esc.Escalate(context.Background(), alert))
	require.NoError(t, esc.Escalate(context.Background(), alert))

	require.Len(t, inner.sent, 1)
	sent := inner.sent[0]
	assert.Equal(t, notify.AlertLevelCritical, sent.Level)
	assert.Equal(t, "cargorelay", sent.Service)
	assert.Equal(t, "risk:MSKU1234567:critical", sent.Fingerprint)
	assert.Equal(t, "MSKU1234567", sent.Labels["container_id"])
}
