// Package registry 会话与房间订阅关系
//
// room → sessions 与 session → rooms 两张表互为镜像，由同一把读写锁保护；
// 房间没有显式生命周期，成员数归零即删除。
// global 房间隐式包含所有已注册会话，不出现在 RoomsOf 中。
package registry

import (
	"sort"
	"sync"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/security"
)

type member struct {
	principal *security.Principal
	rooms     map[string]struct{}
}

// Registry 订阅注册表
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*member             // sessionID -> member
	rooms    map[string]map[string]struct{} // room -> sessionIDs

	policy Policy
	logger logger.Logger
}

// Option 注册表选项
type Option func(*Registry)

// WithPolicy 替换权限策略
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建注册表
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*member),
		rooms:    make(map[string]map[string]struct{}),
		policy:   DefaultPolicy{},
		logger:   logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册会话
func (r *Registry) Register(sessionID string, p *security.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; ok {
		return ErrSessionExists
	}
	r.sessions[sessionID] = &member{principal: p, rooms: make(map[string]struct{})}
	return nil
}

// Unregister 注销会话并退出所有房间，返回退出的房间
func (r *Registry) Unregister(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}

	left := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		r.removeMember(room, sessionID)
		left = append(left, room)
	}
	delete(r.sessions, sessionID)

	sort.Strings(left)
	return left
}

// Join 加入房间，重复加入不报错
func (r *Registry) Join(sessionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if err := r.policy.Check(m.principal, room); err != nil {
		r.logger.Debug("room join denied", "session_id", sessionID, "room", room, "error", err)
		return err
	}
	if _, joined := m.rooms[room]; joined {
		return nil
	}

	m.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[sessionID] = struct{}{}
	return nil
}

// Leave 退出房间，不在房间内时为空操作
func (r *Registry) Leave(sessionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if _, joined := m.rooms[room]; !joined {
		return nil
	}
	delete(m.rooms, room)
	r.removeMember(room, sessionID)
	return nil
}

func (r *Registry) removeMember(room, sessionID string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// MembersOf 房间成员快照
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room == event.RoomGlobal {
		return r.allSessions()
	}
	members := r.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// allSessions 调用方持有读锁
func (r *Registry) allSessions() []string {
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}

// MembersOfAny 多个房间成员的并集，每个会话只出现一次
func (r *Registry) MembersOfAny(rooms []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range rooms {
		if room == event.RoomGlobal {
			return r.allSessions()
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, room := range rooms {
		for id := range r.rooms[room] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// RoomsOf 会话所在房间（已排序），会话不存在时返回 nil
func (r *Registry) RoomsOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Principal 会话的身份
func (r *Registry) Principal(sessionID string) (*security.Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return m.principal, true
}

// Stats 注册表统计
type Stats struct {
	Sessions    int            `json:"sessions"`
	Rooms       int            `json:"rooms"`
	ByRole      map[string]int `json:"byRole"`
	RoomMembers map[string]int `json:"roomMembers"`
}

// Stats 返回当前统计
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Sessions:    len(r.sessions),
		Rooms:       len(r.rooms),
		ByRole:      make(map[string]int),
		RoomMembers: make(map[string]int, len(r.rooms)),
	}
	for _, m := range r.sessions {
		role := ""
		if m.principal != nil {
			role = m.principal.Role
		}
		s.ByRole[role]++
	}
	for room, members := range r.rooms {
		s.RoomMembers[room] = len(members)
	}
	return s
}
