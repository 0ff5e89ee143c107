package gateway

import (
	"sync"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/router"
	"github.com/lk2023060901/cargorelay/pkg/security"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
)

// Session 认证通过的连接
type Session struct {
	ID          string
	Principal   *security.Principal
	ConnectedAt time.Time

	conn *websocket.Connection
}

func newSession(conn *websocket.Connection, p *security.Principal) *Session {
	return &Session{
		ID:          conn.ID(),
		Principal:   p,
		ConnectedAt: conn.ConnectedAt(),
		conn:        conn,
	}
}

// Send 非阻塞入队，实现 router.Sender
func (s *Session) Send(msg *websocket.Message) error {
	return s.conn.Send(msg)
}

// SendEvent 直接投递一个事件给该会话
func (s *Session) SendEvent(ev *event.Envelope) error {
	return s.conn.Send(websocket.NewTextMessage(ev.Frame(), ev.Priority.Queue()))
}

func (s *Session) reply(typ string, data any) error {
	return s.conn.SendJSON(frame{Type: typ, Data: data}, websocket.PriorityNormal)
}

func (s *Session) replyError(code, message, room string) error {
	return s.reply(ReplyError, errorData{Code: code, Message: message, Room: room})
}

// Sessions 会话目录，路由器通过它按 ID 找到发送端
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*Session
}

var _ router.Directory = (*Sessions)(nil)

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]*Session)}
}

func (s *Sessions) add(sess *Session) {
	s.mu.Lock()
	s.items[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Sessions) remove(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	return sess, ok
}

// Get 按 ID 查找会话
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.items[id]
	return sess, ok
}

// Lookup 实现 router.Directory
func (s *Sessions) Lookup(id string) (router.Sender, bool) {
	sess, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return sess, true
}

// Len 当前会话数
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
