// Package risk 集装箱滞港风险评分与异常检测
//
// 评分为加权线性和：每一项有上限，总分截断到 [0,1] 并保留 4 位小数。
// 等级阈值：>=0.7 critical，>=0.4 warning，>=0.2 caution，其余 low。
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
)

type (
	Assessment = container.Assessment
	Factor     = container.Factor
	Anomaly    = container.Anomaly
	Level      = container.Level
)

// 等级阈值
const (
	CautionThreshold  = 0.2
	WarningThreshold  = 0.4
	CriticalThreshold = 0.7
)

// Engine 风险引擎，除时钟外无状态
type Engine struct {
	now func() time.Time
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess 评估快照
func (e *Engine) Assess(s *container.Snapshot) Assessment {
	score, factors := Score(s)
	return Assessment{
		Score:      score,
		Level:      LevelFor(score),
		Factors:    factors,
		Anomalies:  DetectAnomalies(s),
		AssessedAt: e.now().UTC(),
	}
}

// Score 计算分数与分项，分项按权重计入顺序排列
func Score(s *container.Snapshot) (float64, []Factor) {
	var (
		total   float64
		factors []Factor
	)
	add := func(name string, weight float64, desc string) {
		if weight <= 0 {
			return
		}
		total += weight
		factors = append(factors, Factor{Name: name, Weight: round4(weight), Description: desc})
	}

	switch h := s.HoursAtPort; {
	case h > 168:
		add("time_at_port", 0.40, fmt.Sprintf("%.0fh at port, over 7 days", h))
	case h > 120:
		add("time_at_port", 0.30, fmt.Sprintf("%.0fh at port, over 5 days", h))
	case h > 72:
		add("time_at_port", 0.20, fmt.Sprintf("%.0fh at port, over 3 days", h))
	}

	switch s.PortCongestion {
	case container.CongestionHigh:
		add("port_congestion", 0.30, "high port congestion")
	case container.CongestionMedium:
		add("port_congestion", 0.20, "medium port congestion")
	}

	if s.DocumentsIncomplete {
		add("documentation", 0.20, "documents incomplete")
	}
	if s.WeatherDelay {
		add("weather", 0.10, "weather delay reported")
	}

	eff := clamp(s.Efficiency(), 0, 1)
	add("port_efficiency", (1-eff)*0.20, fmt.Sprintf("port efficiency %.0f%%", eff*100))

	if s.CustomsProcessingHours > 48 {
		add("customs", 0.15, fmt.Sprintf("customs processing %.0fh", s.CustomsProcessingHours))
	}

	return round4(clamp(total, 0, 1)), factors
}

// LevelFor 分数对应的等级
func LevelFor(score float64) Level {
	switch {
	case score >= CriticalThreshold:
		return container.LevelCritical
	case score >= WarningThreshold:
		return container.LevelWarning
	case score >= CautionThreshold:
		return container.LevelCaution
	default:
		return container.LevelLow
	}
}

// Crossed 两次评估之间等级是否变化
func Crossed(prev, next Level) bool {
	return prev.Rank() != next.Rank()
}

// AlertSeverity 等级变化对应的告警级别
// 升入 critical 为 critical，升入 warning 为 warning，下降为 info；其余变化不告警
func AlertSeverity(prev, next Level) (container.Severity, bool) {
	if !Crossed(prev, next) {
		return "", false
	}
	if next.Rank() < prev.Rank() {
		return container.SeverityInfo, true
	}
	switch next {
	case container.LevelCritical:
		return container.SeverityCritical, true
	case container.LevelWarning:
		return container.SeverityWarning, true
	}
	return "", false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
