package websocket

import "errors"

var (
	ErrConnectionClosed    = errors.New("websocket: connection closed")
	ErrSendQueueFull       = errors.New("websocket: send queue full")
	ErrServerClosed        = errors.New("websocket: server closed")
	ErrPoolFull            = errors.New("websocket: connection pool full")
	ErrMaxConnectionsPerIP = errors.New("websocket: max connections per ip reached")
	ErrMessageTooLarge     = errors.New("websocket: message too large")
	ErrRateLimited         = errors.New("websocket: rate limit exceeded")
	ErrHandlerPanic        = errors.New("websocket: handler panic")
	ErrInvalidConfig       = errors.New("websocket: invalid config")
)

// CloseAuthFailed 认证失败时使用的关闭码（4000-4999 为应用保留区间）
const CloseAuthFailed = 4401
