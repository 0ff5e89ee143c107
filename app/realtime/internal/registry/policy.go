package registry

import (
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/pkg/security"
)

// 权限名
const (
	PermViewContainers = "view_containers"
	PermViewDashboard  = "view_dashboard"
	PermViewExecutive  = "view_executive"
	PermViewAlerts     = "view_alerts"
	PermAlerting       = "alerting"
	PermBroadcast      = "broadcast"
)

// Policy 房间加入权限
type Policy interface {
	// Check 允许时返回 nil，否则返回 *DeniedError
	Check(p *security.Principal, room string) error
}

// PolicyFunc 函数适配
type PolicyFunc func(p *security.Principal, room string) error

func (f PolicyFunc) Check(p *security.Principal, room string) error { return f(p, room) }

// DefaultPolicy 按命名空间检查权限
//   - "*" 权限可加入任意房间
//   - user:<id> 只能是自己，role:<r> 只能是自己的角色
//   - container:* 需要 view_containers
//   - dashboard:* 需要 view_dashboard，dashboard:executive 另需 view_executive
//   - alerts:* 需要 view_alerts，alerts:critical 另需 alerting
//   - 其他命名空间不限制
type DefaultPolicy struct{}

func (DefaultPolicy) Check(p *security.Principal, room string) error {
	if room == "" {
		return &DeniedError{Room: room, Reason: "empty room name"}
	}
	if p == nil {
		return &DeniedError{Room: room, Reason: "anonymous"}
	}
	if p.Has(security.PermissionAll) {
		return nil
	}

	ns, name := event.SplitRoom(room)
	switch ns {
	case event.NamespaceUser:
		if name != p.UserID {
			return &DeniedError{Room: room, Reason: "not your user room"}
		}
	case event.NamespaceRole:
		if name != p.Role {
			return &DeniedError{Room: room, Reason: "not your role"}
		}
	case event.NamespaceContainer:
		return needPerm(p, room, PermViewContainers)
	case event.NamespaceDashboard:
		if err := needPerm(p, room, PermViewDashboard); err != nil {
			return err
		}
		if room == event.RoomDashboardExecutive {
			return needPerm(p, room, PermViewExecutive)
		}
	case event.NamespaceAlerts:
		if err := needPerm(p, room, PermViewAlerts); err != nil {
			return err
		}
		if room == event.RoomAlertsCritical {
			return needPerm(p, room, PermAlerting)
		}
	}
	return nil
}

func needPerm(p *security.Principal, room, perm string) error {
	if p.Has(perm) {
		return nil
	}
	return &DeniedError{Room: room, Reason: "missing permission " + perm}
}
