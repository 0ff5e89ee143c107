package bridge

import "errors"

var (
	// ErrBrokerUnavailable broker 连接失败或订阅中断
	ErrBrokerUnavailable = errors.New("bridge: broker unavailable")

	// ErrUnknownTransport 未知的 transport 类型
	ErrUnknownTransport = errors.New("bridge: unknown transport")

	// ErrClosed transport 已关闭
	ErrClosed = errors.New("bridge: transport closed")

	// ErrNoHandler 未设置消息处理函数
	ErrNoHandler = errors.New("bridge: no handler")
)
