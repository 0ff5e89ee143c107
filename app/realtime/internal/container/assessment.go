package container

import "time"

// Level 风险等级
type Level string

const (
	LevelLow      Level = "low"
	LevelCaution  Level = "caution"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Rank 等级序号，用于比较升降
func (l Level) Rank() int {
	switch l {
	case LevelCaution:
		return 1
	case LevelWarning:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// Factor 风险分项
type Factor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Anomaly 传感器或流程异常
type Anomaly struct {
	Kind     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Value    float64  `json:"value"`
}

// Assessment 一次风险评估结果
type Assessment struct {
	Score      float64   `json:"score"`
	Level      Level     `json:"level"`
	Factors    []Factor  `json:"factors"`
	Anomalies  []Anomaly `json:"anomalies,omitempty"`
	AssessedAt time.Time `json:"assessedAt"`
}
