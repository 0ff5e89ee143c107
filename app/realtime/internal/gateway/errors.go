package gateway

import "errors"

var (
	// ErrAuthentication 握手认证失败，包装 security 包的具体原因
	ErrAuthentication = errors.New("gateway: authentication failed")

	ErrSessionNotFound = errors.New("gateway: session not found")
	ErrNilDependency   = errors.New("gateway: nil dependency")
)

// 错误帧 code
const (
	CodeAuthenticationFailed = "authentication_failed"
	CodePermissionDenied     = "permission_denied"
	CodeNotFound             = "not_found"
	CodeMalformedMessage     = "malformed_message"
	CodeInternal             = "internal_error"
)
