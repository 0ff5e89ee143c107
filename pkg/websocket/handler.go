package websocket

import "net/http"

// HandlerFunc 单条入站消息的处理函数
type HandlerFunc func(conn *Connection, msg *Message) error

// MessageHandler 连接生命周期回调
type MessageHandler interface {
	// OnConnect 升级完成、读写循环启动前调用；返回错误时关闭连接
	OnConnect(conn *Connection) error
	// OnMessage 处理入站消息
	OnMessage(conn *Connection, msg *Message) error
	// OnDisconnect 连接断开后调用，err 为 nil 表示正常关闭
	OnDisconnect(conn *Connection, err error)
}

// Authenticator 在升级前校验 HTTP 请求，返回的身份信息通过 Connection.Auth 读取
type Authenticator func(r *http.Request) (any, error)

// AuthErrorEncoder 认证失败时发送给客户端的最后一帧
type AuthErrorEncoder func(err error) []byte

// BaseHandler 空实现，便于嵌入
type BaseHandler struct{}

func (BaseHandler) OnConnect(*Connection) error          { return nil }
func (BaseHandler) OnMessage(*Connection, *Message) error { return nil }
func (BaseHandler) OnDisconnect(*Connection, error)      {}
