package event

import "strings"

// 房间命名空间
const (
	NamespaceUser      = "user"
	NamespaceRole      = "role"
	NamespaceContainer = "container"
	NamespaceDashboard = "dashboard"
	NamespaceAlerts    = "alerts"
	NamespaceGlobal    = "global"
)

// 固定房间
const (
	RoomGlobal              = "global"
	RoomAlertsAll           = "alerts:all"
	RoomAlertsCritical      = "alerts:critical"
	RoomAlertsWarning       = "alerts:warning"
	RoomAlertsHighRisk      = "alerts:high-risk"
	RoomDashboardOperations = "dashboard:operations"
	RoomDashboardExecutive  = "dashboard:executive"
	RoomRoleAdmin           = "role:admin"
	RoomRoleExecutive       = "role:executive"
	RoomRoleOperations      = "role:operations"
)

func UserRoom(id string) string      { return NamespaceUser + ":" + id }
func RoleRoom(role string) string    { return NamespaceRole + ":" + role }
func ContainerRoom(id string) string { return NamespaceContainer + ":" + id }

// SplitRoom 拆分 namespace:name，没有冒号时整个字符串视为命名空间
func SplitRoom(room string) (namespace, name string) {
	ns, rest, ok := strings.Cut(room, ":")
	if !ok {
		return room, ""
	}
	return ns, rest
}
