package event

import (
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
)

// Alert 告警
type Alert struct {
	Severity  container.Severity `json:"severity"`
	Message   string             `json:"message"`
	SubjectID string             `json:"subjectId,omitempty"`
	Details   any                `json:"details,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// AlertRooms 告警的目标房间
//   - 所有级别：alerts:all
//   - critical：alerts:critical、role:admin、role:executive
//   - warning：alerts:warning、role:operations
func AlertRooms(sev container.Severity) []string {
	rooms := []string{RoomAlertsAll}
	switch sev {
	case container.SeverityCritical:
		rooms = append(rooms, RoomAlertsCritical, RoomRoleAdmin, RoomRoleExecutive)
	case container.SeverityWarning:
		rooms = append(rooms, RoomAlertsWarning, RoomRoleOperations)
	}
	return rooms
}

// AlertType 告警级别对应的事件类型
func AlertType(sev container.Severity) Type {
	switch sev {
	case container.SeverityCritical:
		return TypeAlertCritical
	case container.SeverityWarning:
		return TypeAlertWarning
	default:
		return TypeNotificationInfo
	}
}

// ParseSeverity 未知级别按 info 处理
func ParseSeverity(s string) container.Severity {
	switch container.Severity(s) {
	case container.SeverityCritical, container.SeverityWarning:
		return container.Severity(s)
	default:
		return container.SeverityInfo
	}
}
