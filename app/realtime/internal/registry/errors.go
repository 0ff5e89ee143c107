package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound 会话未注册
	ErrSessionNotFound = errors.New("registry: session not found")

	// ErrSessionExists 会话 ID 重复注册
	ErrSessionExists = errors.New("registry: session already registered")

	// ErrPermissionDenied 无权加入房间
	ErrPermissionDenied = errors.New("registry: permission denied")
)

// DeniedError 拒绝加入房间的原因
type DeniedError struct {
	Room   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("registry: join %s denied: %s", e.Room, e.Reason)
}

// Is 使 errors.Is(err, ErrPermissionDenied) 成立
func (e *DeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
