package risk

import (
	"fmt"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
)

// 冷藏箱与清关异常阈值
const (
	MinReeferTemperature = -10.0
	MaxReeferTemperature = 25.0
	MaxHumidity          = 90.0
	CustomsHoldHours     = 96.0
)

// 异常类型
const (
	AnomalyTemperature = "temperature_anomaly"
	AnomalyHumidity    = "humidity_anomaly"
	AnomalyCustomsHold = "customs_hold"
)

// DetectAnomalies 检测传感器与清关异常，未上报的传感器不参与判断
func DetectAnomalies(s *container.Snapshot) []Anomaly {
	var out []Anomaly

	if t := s.Temperature; t != nil && (*t < MinReeferTemperature || *t > MaxReeferTemperature) {
		out = append(out, Anomaly{
			Kind:     AnomalyTemperature,
			Severity: container.SeverityCritical,
			Message:  fmt.Sprintf("temperature %.1f°C outside [%.0f, %.0f]", *t, MinReeferTemperature, MaxReeferTemperature),
			Value:    *t,
		})
	}
	if h := s.Humidity; h != nil && *h > MaxHumidity {
		out = append(out, Anomaly{
			Kind:     AnomalyHumidity,
			Severity: container.SeverityWarning,
			Message:  fmt.Sprintf("humidity %.0f%% above %.0f%%", *h, MaxHumidity),
			Value:    *h,
		})
	}
	if s.CustomsProcessingHours > CustomsHoldHours {
		out = append(out, Anomaly{
			Kind:     AnomalyCustomsHold,
			Severity: container.SeverityWarning,
			Message:  fmt.Sprintf("customs processing %.0fh", s.CustomsProcessingHours),
			Value:    s.CustomsProcessingHours,
		})
	}
	return out
}
