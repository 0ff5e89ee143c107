package event

import (
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/idgen"
	"github.com/lk2023060901/cargorelay/pkg/pool/bytebuff"
)

// Envelope 统一事件信封，构造后不可修改
// 下发给客户端的帧在构造时编码一次，所有接收方共享同一份字节
type Envelope struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Rooms     []string  `json:"rooms"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	SourceID  string    `json:"sourceId,omitempty"`
	Priority  Priority  `json:"priority"`
	Origin    string    `json:"origin,omitempty"`

	frame []byte
}

// clientFrame 线上格式 {"type", "data"}
type clientFrame struct {
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Frame 客户端帧
func (e *Envelope) Frame() []byte {
	return e.frame
}

// Option 信封选项
type Option func(*Envelope)

// WithSource 来源（broker 频道或会话 ID）
func WithSource(id string) Option {
	return func(e *Envelope) {
		e.SourceID = id
	}
}

// WithPriority 覆盖默认优先级
func WithPriority(p Priority) Option {
	return func(e *Envelope) {
		e.Priority = p
	}
}

// Factory 信封工厂，负责 ID、时间戳、实例标识与编码
type Factory struct {
	ids    idgen.Generator
	now    func() time.Time
	origin string
	bufs   *bytebuff.Pool
}

// FactoryOption 工厂选项
type FactoryOption func(*Factory)

// WithClock 替换时钟
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// WithOrigin 当前实例 ID，写入每个信封用于跨实例去重
func WithOrigin(origin string) FactoryOption {
	return func(f *Factory) {
		f.origin = origin
	}
}

// WithBufferPool 共享编码缓冲池
func WithBufferPool(p *bytebuff.Pool) FactoryOption {
	return func(f *Factory) {
		if p != nil {
			f.bufs = p
		}
	}
}

// NewFactory 创建工厂，ids 为 nil 时使用进程内自增序列
func NewFactory(ids idgen.Generator, opts ...FactoryOption) *Factory {
	if ids == nil {
		ids = &idgen.Sequence{}
	}
	f := &Factory{
		ids:  ids,
		now:  time.Now,
		bufs: bytebuff.NewPool(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Origin 实例 ID
func (f *Factory) Origin() string {
	return f.origin
}

// Now 工厂时钟
func (f *Factory) Now() time.Time {
	return f.now().UTC()
}

// New 构造信封，rooms 去重且保持顺序
func (f *Factory) New(typ Type, rooms []string, payload any, opts ...Option) (*Envelope, error) {
	id, err := f.ids.NextID()
	if err != nil {
		return nil, err
	}

	e := &Envelope{
		ID:        strconv.FormatUint(id, 10),
		Type:      typ,
		Rooms:     dedupe(rooms),
		Payload:   payload,
		Timestamp: f.Now(),
		Priority:  typ.DefaultPriority(),
		Origin:    f.origin,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.frame, err = f.bufs.MarshalJSON(clientFrame{
		Type:      e.Type,
		Data:      e.Payload,
		ID:        e.ID,
		Timestamp: e.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewAlert 按告警级别路由，extra 为附加房间
func (f *Factory) NewAlert(a Alert, extra []string, opts ...Option) (*Envelope, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = f.Now()
	}
	rooms := append(AlertRooms(a.Severity), extra...)
	return f.New(AlertType(a.Severity), rooms, a, opts...)
}

// NewBroadcast 客户端发起的广播，只发往 b.Room
func (f *Factory) NewBroadcast(b Broadcast, opts ...Option) (*Envelope, error) {
	if b.Timestamp.IsZero() {
		b.Timestamp = f.Now()
	}
	return f.New(TypeBroadcast, []string{b.Room}, b, opts...)
}

// Encode 用共享缓冲池编码发往 broker 的消息
func (f *Factory) Encode(v any) ([]byte, error) {
	return f.bufs.MarshalJSON(v)
}

func dedupe(rooms []string) []string {
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Broadcast broadcasts 频道上的消息
type Broadcast struct {
	Room          string          `json:"room"`
	Event         string          `json:"event"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	BroadcastedBy string          `json:"broadcastedBy"`
	Timestamp     time.Time       `json:"timestamp"`
	Origin        string          `json:"origin,omitempty"`
}
