package pipeline

import (
	"context"
	"errors"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/pkg/database/influxdb"
	"github.com/lk2023060901/cargorelay/pkg/notify"
)

// MeasurementRisk 风险历史的 measurement
const MeasurementRisk = "container_risk"

// PointWriter 时序写入
type PointWriter interface {
	WritePoints(ctx context.Context, points ...influxdb.Point) error
}

// InfluxSink 把每次评估写为一个数据点
type InfluxSink struct {
	writer PointWriter
}

func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

func (s *InfluxSink) WriteAssessment(ctx context.Context, snap *container.Snapshot) error {
	if snap.Risk == nil {
		return nil
	}
	return s.writer.WritePoints(ctx, assessmentPoint(snap))
}

func assessmentPoint(snap *container.Snapshot) influxdb.Point {
	a := snap.Risk
	tags := map[string]string{
		"container_id": snap.ID,
		"level":        string(a.Level),
	}
	if snap.Carrier != "" {
		tags["carrier"] = snap.Carrier
	}
	if snap.Status != "" {
		tags["status"] = string(snap.Status)
	}
	if snap.PortCongestion != "" {
		tags["congestion"] = string(snap.PortCongestion)
	}

	fields := map[string]any{
		"score":         a.Score,
		"hours_at_port": snap.HoursAtPort,
		"anomalies":     len(a.Anomalies),
	}
	for _, f := range a.Factors {
		fields["factor_"+f.Name] = f.Weight
	}
	if snap.Temperature != nil {
		fields["temperature"] = *snap.Temperature
	}

	return influxdb.Point{
		Measurement: MeasurementRisk,
		Tags:        tags,
		Fields:      fields,
		Time:        a.AssessedAt,
	}
}

// WebhookEscalator 把告警转为 notify.Alert 交给通知器，同一集装箱同一级别的重复告警由 Throttle 抑制
type WebhookEscalator struct {
	notifier notify.Notifier
	service  string
}

func NewWebhookEscalator(n notify.Notifier, service string) *WebhookEscalator {
	return &WebhookEscalator{notifier: n, service: service}
}

func (e *WebhookEscalator) Escalate(ctx context.Context, alert event.Alert) error {
	err := e.notifier.Send(ctx, toNotify(alert, e.service))
	if errors.Is(err, notify.ErrSuppressed) {
		return nil
	}
	return err
}

func toNotify(a event.Alert, service string) *notify.Alert {
	level := notify.AlertLevelInfo
	switch a.Severity {
	case container.SeverityCritical:
		level = notify.AlertLevelCritical
	case container.SeverityWarning:
		level = notify.AlertLevelWarning
	}

	labels := map[string]string{"severity": string(a.Severity)}
	if a.SubjectID != "" {
		labels["container_id"] = a.SubjectID
	}
	return &notify.Alert{
		Level:       level,
		Service:     service,
		Summary:     a.Message,
		Labels:      labels,
		Fingerprint: "risk:" + a.SubjectID + ":" + string(a.Severity),
		StartsAt:    a.Timestamp,
	}
}
