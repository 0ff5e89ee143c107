package notify

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("notify: invalid notifier config")

	// ErrSendFailed 发送失败
	ErrSendFailed = errors.New("notify: failed to send notification")

	// ErrSuppressed 重复告警被抑制
	ErrSuppressed = errors.New("notify: alert suppressed")
)
