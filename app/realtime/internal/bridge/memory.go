package bridge

import (
	"context"
	"slices"
	"sync"
)

// MemoryTransport 进程内 transport，单实例部署与测试使用
// Publish 同步回调所有订阅了该频道的 Subscribe
type MemoryTransport struct {
	mu     sync.RWMutex
	subs   map[int]memorySub
	nextID int
	closed bool
	// 发布历史，按频道
	published map[string][][]byte
}

type memorySub struct {
	channels []string
	deliver  DeliverFunc
}

// NewMemoryTransport 创建 transport
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subs:      make(map[int]memorySub),
		published: make(map[string][][]byte),
	}
}

func (t *MemoryTransport) Subscribe(ctx context.Context, channels []string, deliver DeliverFunc) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = memorySub{channels: slices.Clone(channels), deliver: deliver}
	t.mu.Unlock()

	<-ctx.Done()

	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Publish(_ context.Context, channel string, payload []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.published[channel] = append(t.published[channel], slices.Clone(payload))
	targets := make([]DeliverFunc, 0, len(t.subs))
	for _, s := range t.subs {
		if slices.Contains(s.channels, channel) {
			targets = append(targets, s.deliver)
		}
	}
	t.mu.Unlock()

	for _, deliver := range targets {
		deliver(channel, payload)
	}
	return nil
}

// Published 频道上已发布的消息
func (t *MemoryTransport) Published(channel string) [][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.published[channel])
}

// Subscribers 当前订阅数
func (t *MemoryTransport) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
