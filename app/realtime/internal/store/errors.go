package store

import "errors"

var (
	// ErrNotFound 集装箱不存在
	ErrNotFound = errors.New("store: container not found")

	// ErrUnknownBackend 未知的读取后端
	ErrUnknownBackend = errors.New("store: unknown backend")
)
