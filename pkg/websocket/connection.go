package websocket

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Connection WebSocket 连接封装
// 读由 ReadLoop 独占，写由 WriteLoop 独占，其他协程只通过 Send 入队
type Connection struct {
	id   string
	conn *websocket.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration

	queue  *OutboundQueue
	onDrop func(*Connection, *Message)

	logger logger.Logger

	auth     any
	metadata sync.Map

	closed     atomic.Bool
	closeChan  chan struct{}
	closeOnce  sync.Once
	closeMu    sync.Mutex
	closeError error

	remoteAddr  string
	connectedAt time.Time
}

// ConnectionOption 连接选项
type ConnectionOption func(*Connection)

// WithConnectionLogger 设置日志
func WithConnectionLogger(l logger.Logger) ConnectionOption {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueueSize 设置出站队列容量
func WithQueueSize(n int) ConnectionOption {
	return func(c *Connection) {
		c.queue = NewOutboundQueue(n)
	}
}

// WithTimeouts 设置读写超时，readTimeout 同时作为 pong 超时
func WithTimeouts(readTimeout, writeTimeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.readTimeout = readTimeout
		c.writeTimeout = writeTimeout
	}
}

// WithDropHandler 出站消息被丢弃时回调
func WithDropHandler(fn func(*Connection, *Message)) ConnectionOption {
	return func(c *Connection) {
		c.onDrop = fn
	}
}

// WithRemoteAddr 覆盖远端地址（反向代理后取 X-Forwarded-For）
func WithRemoteAddr(addr string) ConnectionOption {
	return func(c *Connection) {
		if addr != "" {
			c.remoteAddr = addr
		}
	}
}

// NewConnection 创建连接
func NewConnection(conn *websocket.Conn, opts ...ConnectionOption) *Connection {
	c := &Connection{
		id:           uuid.NewString(),
		conn:         conn,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		queue:        NewOutboundQueue(256),
		logger:       logger.NewNoop(),
		closeChan:    make(chan struct{}),
		remoteAddr:   conn.RemoteAddr().String(),
		connectedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) RemoteAddr() string     { return c.remoteAddr }
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }
func (c *Connection) IsClosed() bool         { return c.closed.Load() }

// Done 连接关闭时关闭的通道
func (c *Connection) Done() <-chan struct{} {
	return c.closeChan
}

// Auth 认证阶段写入的身份信息
func (c *Connection) Auth() any {
	return c.auth
}

// SetAuth 由 Server 在升级前写入
func (c *Connection) SetAuth(v any) {
	c.auth = v
}

func (c *Connection) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

func (c *Connection) GetMetadata(key string) (any, bool) {
	return c.metadata.Load(key)
}

// Send 非阻塞入队
// 队列满时按优先级丢弃，被挤出的消息交给 drop 回调；新消息本身被拒绝时返回 ErrSendQueueFull
func (c *Connection) Send(msg *Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	evicted, err := c.queue.Push(msg)
	if err != nil {
		if errors.Is(err, ErrSendQueueFull) && c.onDrop != nil {
			c.onDrop(c, msg)
		}
		return err
	}
	if evicted != nil && c.onDrop != nil {
		c.onDrop(c, evicted)
	}
	return nil
}

// SendJSON 编码并入队
func (c *Connection) SendJSON(v any, priority Priority) error {
	msg, err := NewJSONMessage(v, priority)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// QueueLen 出站队列长度
func (c *Connection) QueueLen() int {
	return c.queue.Len()
}

// Dropped 累计丢弃的出站消息数
func (c *Connection) Dropped() uint64 {
	return c.queue.Dropped()
}

// ReadLoop 读取循环，阻塞到连接断开
func (c *Connection) ReadLoop(handler HandlerFunc) {
	defer c.Close()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.IsClosed() && !isExpectedClose(err) {
				c.setCloseError(err)
				c.logger.Debug("websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}

		msg := &Message{Type: MessageType(msgType), Data: data, Timestamp: time.Now()}
		if handler == nil {
			continue
		}
		if err := handler(c, msg); err != nil {
			c.logger.Warn("websocket handler error", "conn_id", c.id, "error", err)
		}
	}
}

// WriteLoop 写入循环，按优先级从队列取消息写出
func (c *Connection) WriteLoop() {
	defer c.Close()

	for {
		for {
			msg, ok := c.queue.Pop()
			if !ok {
				break
			}
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(int(msg.Type), msg.Data); err != nil {
				c.setCloseError(err)
				c.logger.Debug("websocket write error", "conn_id", c.id, "error", err)
				return
			}
		}

		select {
		case <-c.queue.Ready():
		case <-c.closeChan:
			return
		}
	}
}

// Ping 发送 Ping 控制帧
func (c *Connection) Ping() error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// SetPongHandler 设置 Pong 处理器
func (c *Connection) SetPongHandler(h func(appData string) error) {
	c.conn.SetPongHandler(h)
}

// SetReadLimit 设置单帧最大字节数
func (c *Connection) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}

// ExtendReadDeadline 收到 pong 后延长读超时
func (c *Connection) ExtendReadDeadline(d time.Duration) {
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
}

// Close 正常关闭
func (c *Connection) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode 发送关闭帧后关闭底层连接，只生效一次
// 关闭后队列中未发送的消息被丢弃，不影响其他连接
func (c *Connection) CloseWithCode(code int, text string) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeChan)
		c.queue.Close()

		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
	return nil
}

// CloseError 导致连接断开的错误，正常关闭时为 nil
func (c *Connection) CloseError() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeError
}

func (c *Connection) setCloseError(err error) {
	c.closeMu.Lock()
	if c.closeError == nil {
		c.closeError = err
	}
	c.closeMu.Unlock()
}

// writeDirect 在读写循环启动前同步写一帧（握手阶段使用）
func (c *Connection) writeDirect(data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func isExpectedClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
