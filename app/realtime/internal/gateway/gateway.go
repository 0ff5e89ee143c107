// Package gateway WebSocket 接入层：握手认证、会话生命周期与客户端消息处理
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/registry"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/store"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/security"
	"github.com/lk2023060901/cargorelay/pkg/sentry"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
)

var containerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Router 事件扇出
type Router interface {
	Route(ev *event.Envelope) int
	RouteExcept(ev *event.Envelope, sessionID string) int
}

// Snapshots 集装箱当前状态
type Snapshots interface {
	Get(ctx context.Context, id string) (*container.Snapshot, error)
}

// Publisher 把广播转发到 broker
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

// Gateway 实现 websocket.MessageHandler
type Gateway struct {
	verifier  security.TokenVerifier
	registry  *registry.Registry
	sessions  *Sessions
	router    Router
	snapshots Snapshots
	factory   *event.Factory

	publisher        Publisher
	publishTimeout   time.Duration
	republishWorkers int
	readTimeout      time.Duration
	background       *conc.Pool[struct{}]

	reporter sentry.Reporter
	metrics  *metrics.Metrics
	logger   logger.Logger
}

var _ websocket.MessageHandler = (*Gateway)(nil)

// Option 选项
type Option func(*Gateway)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithReporter 设置 panic 上报
func WithReporter(r sentry.Reporter) Option {
	return func(g *Gateway) {
		if r != nil {
			g.reporter = r
		}
	}
}

// WithPublisher 广播同时发布到 broker，供其他实例扇出
func WithPublisher(p Publisher, timeout time.Duration) Option {
	return func(g *Gateway) {
		g.publisher = p
		if timeout > 0 {
			g.publishTimeout = timeout
		}
	}
}

// WithRepublishWorkers 同时进行的 broker 发布数，池满时广播只在本地扇出
func WithRepublishWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.republishWorkers = n
		}
	}
}

// WithReadTimeout track 读取快照的超时
func WithReadTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.readTimeout = d
		}
	}
}

// New 创建网关
func New(verifier security.TokenVerifier, reg *registry.Registry, sessions *Sessions, router Router,
	snapshots Snapshots, factory *event.Factory, opts ...Option) (*Gateway, error) {
	if verifier == nil || reg == nil || sessions == nil || router == nil || snapshots == nil || factory == nil {
		return nil, ErrNilDependency
	}

	g := &Gateway{
		verifier:       verifier,
		registry:       reg,
		sessions:       sessions,
		router:         router,
		snapshots:      snapshots,
		factory:        factory,
		publishTimeout:   5 * time.Second,
		republishWorkers: 4,
		readTimeout:      2 * time.Second,
		reporter:         sentry.Nop{},
		logger:           logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.background = conc.NewPool[struct{}](g.republishWorkers,
		conc.WithNonBlocking(true),
		conc.WithPanicHandler(func(rec any) {
			g.reporter.CapturePanic(rec, map[string]string{"component": "gateway"})
		}),
	)
	return g, nil
}

// Authenticate 升级前校验 token，成功时返回 *security.Principal
func (g *Gateway) Authenticate(r *http.Request) (any, error) {
	token, err := security.TokenFromRequest(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	p, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return p, nil
}

// EncodeAuthError 认证失败时发送的错误帧
func (g *Gateway) EncodeAuthError(err error) []byte {
	data, _ := json.Marshal(frame{
		Type: ReplyError,
		Data: errorData{Code: CodeAuthenticationFailed, Message: authMessage(err)},
	})
	return data
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, security.ErrTokenMissing):
		return "authentication token required"
	case errors.Is(err, security.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, security.ErrTokenNotValidYet):
		return "token not valid yet"
	case errors.Is(err, security.ErrSubjectMissing):
		return "token has no subject"
	default:
		return "invalid token"
	}
}

// OnConnect 注册会话并加入 user / role 房间
func (g *Gateway) OnConnect(conn *websocket.Connection) error {
	p, ok := conn.Auth().(*security.Principal)
	if !ok || p == nil {
		return ErrAuthentication
	}

	sess := newSession(conn, p)
	if err := g.registry.Register(sess.ID, p); err != nil {
		return err
	}
	g.sessions.add(sess)

	rooms := []string{event.UserRoom(p.UserID)}
	if p.Role != "" {
		rooms = append(rooms, event.RoleRoom(p.Role))
	}
	for _, room := range rooms {
		if err := g.registry.Join(sess.ID, room); err != nil {
			g.logger.Warn("auto join failed", "session_id", sess.ID, "room", room, "error", err)
		}
	}

	g.logger.Info("session connected",
		"session_id", sess.ID,
		"user_id", p.UserID,
		"role", p.Role,
		"remote_addr", conn.RemoteAddr(),
	)
	return sess.reply(ReplyConnected, connectedData{
		SessionID:  sess.ID,
		UserID:     p.UserID,
		Role:       p.Role,
		Rooms:      g.registry.RoomsOf(sess.ID),
		ServerTime: g.factory.Now(),
	})
}

// OnMessage 处理客户端帧，协议错误以 error 帧回复，连接保持打开
func (g *Gateway) OnMessage(conn *websocket.Connection, msg *websocket.Message) error {
	sess, ok := g.sessions.Get(conn.ID())
	if !ok {
		return ErrSessionNotFound
	}

	var m ClientMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil || m.Type == "" {
		return sess.replyError(CodeMalformedMessage, "invalid message frame", "")
	}

	switch m.Type {
	case MsgSubscribe:
		return g.subscribe(sess, m.Data)
	case MsgUnsubscribe:
		return g.unsubscribe(sess, m.Data)
	case MsgTrack:
		return g.track(sess, m.Data)
	case MsgPresence:
		return g.presence(sess, m.Data)
	case MsgBroadcast:
		return g.broadcast(sess, m.Data)
	case MsgPing:
		return sess.reply(ReplyPong, map[string]any{"serverTime": g.factory.Now()})
	default:
		return sess.replyError(CodeMalformedMessage, "unknown message type: "+m.Type, "")
	}
}

// OnDisconnect 同步清理会话的全部房间
func (g *Gateway) OnDisconnect(conn *websocket.Connection, err error) {
	sess, ok := g.sessions.remove(conn.ID())
	rooms := g.registry.Unregister(conn.ID())
	if !ok {
		return
	}
	g.logger.Info("session disconnected",
		"session_id", sess.ID,
		"user_id", sess.Principal.UserID,
		"rooms", len(rooms),
		"duration", time.Since(sess.ConnectedAt),
		"error", err,
	)
}

// Close 释放后台发布池
func (g *Gateway) Close() error {
	g.background.Release()
	return nil
}

func (g *Gateway) subscribe(sess *Session, data json.RawMessage) error {
	var req roomsData
	if !decode(data, &req) || len(req.Rooms) == 0 {
		return sess.replyError(CodeMalformedMessage, "subscribe requires rooms", "")
	}

	granted := make([]string, 0, len(req.Rooms))
	for _, room := range req.Rooms {
		if err := g.registry.Join(sess.ID, room); err != nil {
			g.deny(sess, room, err)
			continue
		}
		granted = append(granted, room)
	}
	return sess.reply(ReplySubscribed, roomsData{Rooms: granted})
}

func (g *Gateway) unsubscribe(sess *Session, data json.RawMessage) error {
	var req roomsData
	if !decode(data, &req) || len(req.Rooms) == 0 {
		return sess.replyError(CodeMalformedMessage, "unsubscribe requires rooms", "")
	}

	left := make([]string, 0, len(req.Rooms))
	for _, room := range req.Rooms {
		if err := g.registry.Leave(sess.ID, room); err != nil {
			g.logger.Debug("leave failed", "session_id", sess.ID, "room", room, "error", err)
			continue
		}
		left = append(left, room)
	}
	return sess.reply(ReplyUnsubscribed, roomsData{Rooms: left})
}

// track 加入 container:<id> 并立即推送当前快照
func (g *Gateway) track(sess *Session, data json.RawMessage) error {
	var req trackData
	id := ""
	if decode(data, &req) {
		id = req.id()
	}
	if !containerIDPattern.MatchString(id) {
		return sess.replyError(CodeMalformedMessage, "track requires a valid containerId", "")
	}

	room := event.ContainerRoom(id)
	if err := g.registry.Join(sess.ID, room); err != nil {
		g.deny(sess, room, err)
		return nil
	}
	if err := sess.reply(ReplySubscribed, roomsData{Rooms: []string{room}}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.readTimeout)
	defer cancel()
	snap, err := g.snapshots.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return sess.replyError(CodeNotFound, "container "+id+" not found", room)
	case err != nil:
		g.logger.Warn("snapshot read failed", "container_id", id, "error", err)
		return sess.replyError(CodeInternal, "container state unavailable", room)
	}

	ev, err := g.factory.New(event.TypeContainerUpdate, []string{room}, snap, event.WithSource(sess.ID))
	if err != nil {
		return err
	}
	return sess.SendEvent(ev)
}

// presence 只发给发送者所在的 container / dashboard 房间，不包括发送者自己
func (g *Gateway) presence(sess *Session, data json.RawMessage) error {
	var req presenceData
	if !decode(data, &req) || req.Status == "" {
		return sess.replyError(CodeMalformedMessage, "presence requires status", "")
	}

	var rooms []string
	for _, room := range g.registry.RoomsOf(sess.ID) {
		switch ns, _ := event.SplitRoom(room); ns {
		case event.NamespaceContainer, event.NamespaceDashboard:
			rooms = append(rooms, room)
		}
	}
	if len(rooms) == 0 {
		return nil
	}

	ev, err := g.factory.New(event.TypePresenceUpdate, rooms, presencePayload{
		UserID:    sess.Principal.UserID,
		Status:    req.Status,
		Activity:  req.Activity,
		Timestamp: g.factory.Now(),
	}, event.WithSource(sess.ID))
	if err != nil {
		return err
	}
	g.router.RouteExcept(ev, sess.ID)
	return nil
}

// broadcast 本地扇出后发布到 broadcasts 频道，带上本实例 origin
func (g *Gateway) broadcast(sess *Session, data json.RawMessage) error {
	var req broadcastData
	ok := decode(data, &req)
	if !sess.Principal.Has(registry.PermBroadcast) {
		return sess.replyError(CodePermissionDenied, "broadcast permission required", req.Room)
	}
	if !ok || req.Room == "" || req.Event == "" {
		return sess.replyError(CodeMalformedMessage, "broadcast requires room and event", "")
	}

	b := event.Broadcast{
		Room:          req.Room,
		Event:         req.Event,
		Payload:       req.Payload,
		BroadcastedBy: sess.Principal.UserID,
		Timestamp:     g.factory.Now(),
		Origin:        g.factory.Origin(),
	}
	local := b
	local.Origin = ""
	ev, err := g.factory.NewBroadcast(local, event.WithSource(sess.ID))
	if err != nil {
		return err
	}
	n := g.router.Route(ev)
	g.logger.Debug("broadcast routed", "room", b.Room, "event", b.Event, "by", b.BroadcastedBy, "delivered", n)

	g.republish(b)
	return nil
}

func (g *Gateway) republish(b event.Broadcast) {
	if g.publisher == nil {
		return
	}
	f := g.background.Submit(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), g.publishTimeout)
		defer cancel()
		if err := g.publisher.Publish(ctx, normalizer.ChannelBroadcasts, b); err != nil {
			g.logger.Warn("broadcast republish failed", "room", b.Room, "event", b.Event, "error", err)
		}
		return struct{}{}, nil
	})
	if f.Done() && f.Err() != nil {
		g.metrics.RecordRepublishSkipped()
		g.logger.Warn("broadcast republish skipped", "room", b.Room, "error", f.Err())
	}
}

func (g *Gateway) deny(sess *Session, room string, err error) {
	msg := "permission denied"
	var denied *registry.DeniedError
	switch {
	case errors.As(err, &denied):
		msg = "cannot join " + room + ": " + denied.Reason
	case !errors.Is(err, registry.ErrPermissionDenied):
		g.logger.Warn("join failed", "session_id", sess.ID, "room", room, "error", err)
	}
	_ = sess.replyError(CodePermissionDenied, msg, room)
}

func (g *Gateway) reportPanic(rec any, _ []byte) {
	g.reporter.CapturePanic(rec, map[string]string{"component": "gateway"})
}

func (g *Gateway) onDrop(_ *websocket.Connection, _ *websocket.Message) {
	g.metrics.RecordDropped()
}

func decode(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
