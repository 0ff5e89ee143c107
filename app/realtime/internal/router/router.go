// Package router 按房间把事件扇出到会话
package router

import (
	"errors"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/util/shard"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
)

// Sender 会话的非阻塞发送端
type Sender interface {
	Send(msg *websocket.Message) error
}

// Directory 按会话 ID 查找发送端
type Directory interface {
	Lookup(sessionID string) (Sender, bool)
}

// Members 房间成员查询
type Members interface {
	MembersOfAny(rooms []string) []string
}

// Router 扇出路由器
type Router struct {
	members Members
	dir     Directory
	locks   *shard.Locks
	metrics *metrics.Metrics
	logger  logger.Logger
}

// Option 选项
type Option func(*Router)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithShards 房间锁条带数
func WithShards(n int) Option {
	return func(r *Router) {
		r.locks = shard.NewLocks(n)
	}
}

// New 创建路由器
func New(members Members, dir Directory, opts ...Option) *Router {
	r := &Router{
		members: members,
		dir:     dir,
		locks:   shard.NewLocks(64),
		logger:  logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route 投递给事件所有房间的成员，同时属于多个目标房间的会话只收到一次
// 返回成功入队的会话数
func (r *Router) Route(ev *event.Envelope) int {
	return r.route(ev, "")
}

// RouteExcept 同 Route，但跳过 sessionID
func (r *Router) RouteExcept(ev *event.Envelope, sessionID string) int {
	return r.route(ev, sessionID)
}

func (r *Router) route(ev *event.Envelope, except string) int {
	if ev == nil || len(ev.Rooms) == 0 {
		return 0
	}

	// 持锁期间完成成员解析与入队，同一批房间上的事件按交给路由器的顺序入队
	unlock := r.locks.LockAll(ev.Rooms)
	defer unlock()

	delivered := 0
	for _, id := range r.members.MembersOfAny(ev.Rooms) {
		if id == except {
			continue
		}
		if r.deliver(id, ev) {
			delivered++
		}
	}
	r.metrics.RecordRouted(string(ev.Type), delivered)
	return delivered
}

// deliver 单个会话失败不影响其他会话
func (r *Router) deliver(sessionID string, ev *event.Envelope) bool {
	sender, ok := r.dir.Lookup(sessionID)
	if !ok {
		r.metrics.RecordDeliveryFailure("missing")
		return false
	}

	err := sender.Send(websocket.NewTextMessage(ev.Frame(), ev.Priority.Queue()))
	switch {
	case err == nil:
		return true
	case errors.Is(err, websocket.ErrSendQueueFull):
		r.metrics.RecordDeliveryFailure("queue_full")
		r.logger.Debug("outbound queue full, event dropped",
			"session_id", sessionID, "event_id", ev.ID, "type", ev.Type)
	case errors.Is(err, websocket.ErrConnectionClosed):
		r.metrics.RecordDeliveryFailure("closed")
	default:
		r.metrics.RecordDeliveryFailure("error")
		r.logger.Warn("event delivery failed", "session_id", sessionID, "event_id", ev.ID, "error", err)
	}
	return false
}
