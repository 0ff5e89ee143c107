package websocket

import (
	"sync"
	"sync/atomic"
)

// OutboundQueue 每连接的有界出站队列
//
// 两条通道：critical 与 normal。出队时 critical 优先，同一通道内保持 FIFO。
// 队列满时的丢弃顺序：
//   - 优先丢弃最旧的 normal 消息
//   - 只剩 critical 消息时，新来的 normal 消息被拒绝，新来的 critical 消息挤掉最旧的 critical 消息
type OutboundQueue struct {
	mu       sync.Mutex
	capacity int
	critical []*Message
	normal   []*Message
	closed   bool

	ready   chan struct{}
	dropped atomic.Uint64
}

// NewOutboundQueue 创建队列
func NewOutboundQueue(capacity int) *OutboundQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &OutboundQueue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push 入队，返回因此被挤出的消息（可能为 nil）
// 新消息本身被拒绝时返回 ErrSendQueueFull
func (q *OutboundQueue) Push(msg *Message) (evicted *Message, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrConnectionClosed
	}

	if len(q.critical)+len(q.normal) >= q.capacity {
		switch {
		case len(q.normal) > 0:
			evicted = q.normal[0]
			q.normal[0] = nil
			q.normal = q.normal[1:]
		case msg.Priority == PriorityCritical:
			evicted = q.critical[0]
			q.critical[0] = nil
			q.critical = q.critical[1:]
		default:
			q.mu.Unlock()
			q.dropped.Add(1)
			return nil, ErrSendQueueFull
		}
		q.dropped.Add(1)
	}

	if msg.Priority == PriorityCritical {
		q.critical = append(q.critical, msg)
	} else {
		q.normal = append(q.normal, msg)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted, nil
}

// Pop 非阻塞出队
func (q *OutboundQueue) Pop() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.critical) > 0 {
		msg := q.critical[0]
		q.critical[0] = nil
		q.critical = q.critical[1:]
		return msg, true
	}
	if len(q.normal) > 0 {
		msg := q.normal[0]
		q.normal[0] = nil
		q.normal = q.normal[1:]
		return msg, true
	}
	return nil, false
}

// Ready 有消息入队时收到通知
func (q *OutboundQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len 当前排队的消息数
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.critical) + len(q.normal)
}

// Dropped 累计丢弃数
func (q *OutboundQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close 关闭队列并丢弃剩余消息
func (q *OutboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.critical = nil
	q.normal = nil
}
