package notify

import (
	"context"
	"sync"
	"time"
)

// Notifier 通知器接口
type Notifier interface {
	// Send 发送告警
	Send(ctx context.Context, alert *Alert) error

	// Name 返回通知器名称（用于日志）
	Name() string
}

// Throttle 按 Fingerprint 抑制重复告警，同一指纹在 interval 内只发送一次
type Throttle struct {
	next     Notifier
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewThrottle 包装通知器
func NewThrottle(next Notifier, interval time.Duration) *Throttle {
	return &Throttle{
		next:     next,
		interval: interval,
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
}

func (t *Throttle) Name() string { return t.next.Name() }

// Send 被抑制时返回 ErrSuppressed
func (t *Throttle) Send(ctx context.Context, alert *Alert) error {
	if alert.Fingerprint != "" && t.interval > 0 {
		now := t.now()
		t.mu.Lock()
		last, ok := t.sent[alert.Fingerprint]
		if ok && now.Sub(last) < t.interval {
			t.mu.Unlock()
			return ErrSuppressed
		}
		t.sent[alert.Fingerprint] = now
		// 顺手清理过期指纹
		for fp, at := range t.sent {
			if now.Sub(at) >= t.interval {
				delete(t.sent, fp)
			}
		}
		t.mu.Unlock()
	}
	return t.next.Send(ctx, alert)
}
