// Package event 统一事件信封、房间命名与告警路由
package event

import (
	"github.com/lk2023060901/cargorelay/pkg/websocket"
)

// Type 事件类型，即下发帧的 type 字段
type Type string

const (
	TypeContainerUpdate  Type = "container:update"
	TypeContainerStatus  Type = "container:status"
	TypeRiskUpdate       Type = "risk:update"
	TypePredictionUpdate Type = "prediction:update"
	TypeAnomalyDetected  Type = "anomaly:detected"
	TypeAlertCritical    Type = "alert:critical"
	TypeAlertWarning     Type = "alert:warning"
	TypeNotificationInfo Type = "notification:info"
	TypeMetricsUpdate    Type = "metrics:update"
	TypeKPIUpdate        Type = "kpi:update"
	TypePresenceUpdate   Type = "presence:update"
	TypeBroadcast        Type = "broadcast"
)

// Priority 投递优先级
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityCritical Priority = "critical"
)

// Queue 对应的出站队列通道
func (p Priority) Queue() websocket.Priority {
	if p == PriorityCritical {
		return websocket.PriorityCritical
	}
	return websocket.PriorityNormal
}

// DefaultPriority 类型的默认优先级，只有 critical 告警走高优先级通道
func (t Type) DefaultPriority() Priority {
	if t == TypeAlertCritical {
		return PriorityCritical
	}
	return PriorityNormal
}
