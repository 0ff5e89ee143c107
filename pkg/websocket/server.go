package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
	"github.com/prometheus/client_golang/prometheus"
)

// Server WebSocket 服务端
type Server struct {
	config   *ServerConfig
	upgrader *websocket.Upgrader
	logger   logger.Logger

	pool *ConnectionPool

	handler     MessageHandler
	middlewares []Middleware
	handlerFunc HandlerFunc

	authenticate     Authenticator
	authErrorEncoder AuthErrorEncoder
	onDrop           func(*Connection, *Message)

	workerPool *conc.Pool[struct{}]

	metrics           *ServerMetrics
	metricsRegisterer prometheus.Registerer

	httpServer *http.Server

	mu      sync.RWMutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewServer 创建服务端
func NewServer(cfg *ServerConfig, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		logger:  logger.NewNoop(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = &websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin:       originChecker(cfg.AllowedOrigins),
	}

	s.pool = NewConnectionPool(cfg.Pool)

	// 每个连接占用写循环与 ping 循环两个 worker
	s.workerPool = conc.NewPool[struct{}](cfg.Pool.MaxConnections * 2)

	if s.metricsRegisterer != nil {
		s.metrics = NewServerMetrics(s.metricsRegisterer)
	}

	s.buildHandlerChain()
	return s, nil
}

func (s *Server) buildHandlerChain() {
	base := func(conn *Connection, msg *Message) error {
		if s.metrics != nil {
			s.metrics.OnMessageReceived(len(msg.Data))
		}
		if s.handler != nil {
			return s.handler.OnMessage(conn, msg)
		}
		return nil
	}

	mws := append([]Middleware{}, s.middlewares...)
	if s.config.RateLimit.Rate > 0 {
		mws = append(mws, RateLimitPerConnection(s.config.RateLimit.Rate, s.config.RateLimit.Burst))
	}
	s.handlerFunc = Chain(base, mws...)
}

// originChecker 空列表时只允许无 Origin 的请求（非浏览器客户端）
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.ServeHTTP)
}

// ServeHTTP 认证、升级并阻塞处理连接直到断开
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	ip := extractIP(r)
	if err := s.pool.Reserve(ip); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, ErrMaxConnectionsPerIP) {
			status = http.StatusTooManyRequests
		}
		if s.metrics != nil {
			s.metrics.OnRejected(rejectReason(err))
		}
		s.logger.Warn("websocket connection rejected", "remote_addr", ip, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	defer s.pool.Release(ip)

	var (
		identity any
		authErr  error
	)
	if s.authenticate != nil {
		identity, authErr = s.authenticate(r)
	}

	// 浏览器通过子协议携带 token 时必须回显，否则握手失败
	var header http.Header
	if protocols := websocket.Subprotocols(r); len(protocols) > 0 {
		header = http.Header{"Sec-Websocket-Protocol": []string{protocols[0]}}
	}

	wsConn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		if s.metrics != nil {
			s.metrics.OnRejected("upgrade")
		}
		s.logger.Warn("websocket upgrade failed", "remote_addr", ip, "error", err)
		return
	}

	conn := NewConnection(wsConn,
		WithConnectionLogger(s.logger),
		WithQueueSize(s.config.SendQueueSize),
		WithTimeouts(s.config.PongTimeout, s.config.WriteTimeout),
		WithDropHandler(s.handleDrop),
		WithRemoteAddr(ip),
	)

	if authErr != nil {
		s.rejectAuth(conn, authErr)
		return
	}
	conn.SetAuth(identity)

	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}

	s.pool.Add(conn)
	if s.metrics != nil {
		s.metrics.OnConnectionOpened()
	}
	s.handleConnection(conn)
}

// rejectAuth 发送错误帧后以 4401 关闭，不进入连接池
func (s *Server) rejectAuth(conn *Connection, err error) {
	if s.metrics != nil {
		s.metrics.OnAuthFailure()
	}
	s.logger.Info("websocket authentication failed", "remote_addr", conn.RemoteAddr(), "error", err)

	if s.authErrorEncoder != nil {
		if data := s.authErrorEncoder(err); len(data) > 0 {
			_ = conn.writeDirect(data)
		}
	}
	_ = conn.CloseWithCode(CloseAuthFailed, "authentication failed")
}

func (s *Server) handleDrop(conn *Connection, msg *Message) {
	if s.metrics != nil {
		s.metrics.OnDropped(msg.Priority)
	}
	if s.onDrop != nil {
		s.onDrop(conn, msg)
	}
}

func (s *Server) handleConnection(conn *Connection) {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.handler != nil {
		if err := s.handler.OnConnect(conn); err != nil {
			s.logger.Warn("websocket OnConnect error", "conn_id", conn.ID(), "error", err)
			_ = conn.Close()
			s.removeConnection(conn, err)
			return
		}
	}

	conn.SetPongHandler(func(string) error {
		if s.config.PongTimeout > 0 {
			conn.ExtendReadDeadline(s.config.PongTimeout)
		}
		return nil
	})

	s.workerPool.Submit(func() (struct{}, error) {
		conn.WriteLoop()
		return struct{}{}, nil
	})

	if s.config.PingInterval > 0 {
		s.workerPool.Submit(func() (struct{}, error) {
			s.pingLoop(conn)
			return struct{}{}, nil
		})
	}

	conn.ReadLoop(s.handlerFunc)

	s.removeConnection(conn, conn.CloseError())
}

func (s *Server) pingLoop(conn *Connection) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				s.logger.Debug("websocket ping error", "conn_id", conn.ID(), "error", err)
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		case <-s.closeCh:
			return
		}
	}
}

func (s *Server) removeConnection(conn *Connection, err error) {
	if !s.pool.Remove(conn.ID()) {
		return
	}
	if s.handler != nil {
		s.handler.OnDisconnect(conn, err)
	}
	if s.metrics != nil {
		s.metrics.OnConnectionClosed()
	}
}

// ConnectionCount 当前连接数
func (s *Server) ConnectionCount() int {
	return s.pool.Count()
}

// Stats 连接统计
func (s *Server) Stats() Stats {
	return s.pool.Stats()
}

// Start 在 config.Addr 上监听，config.Addr 为空时直接返回
// extra 中的路由与 WebSocket 路径挂载在同一端口
func (s *Server) Start(ctx context.Context, extra ...func(mux *http.ServeMux)) error {
	if s.config.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, s.Handler())
	for _, fn := range extra {
		fn(mux)
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: s.config.HandshakeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("websocket server listening", "addr", ln.Addr().String(), "path", s.config.Path)

	conc.Go(func() (struct{}, error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("websocket http server stopped", "error", err)
		}
		return struct{}{}, nil
	})
	return nil
}

// Stop 关闭监听与所有连接
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	if srv != nil {
		// Shutdown 不处理已劫持的 WebSocket 连接，由 Close 负责
		_ = srv.Shutdown(ctx)
	}
	return s.CloseWithContext(ctx)
}

// Close 关闭服务端
func (s *Server) Close() error {
	return s.CloseWithContext(context.Background())
}

// CloseWithContext 关闭所有连接并等待处理协程退出
func (s *Server) CloseWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	s.pool.CloseAll(websocket.CloseGoingAway, "server shutting down")

	done := conc.Go(func() (struct{}, error) {
		s.wg.Wait()
		return struct{}{}, nil
	})

	select {
	case <-done.Inner():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.workerPool.Release()
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMaxConnectionsPerIP):
		return "per_ip_limit"
	case errors.Is(err, ErrPoolFull):
		return "pool_full"
	default:
		return "closed"
	}
}

// extractIP 优先取 X-Forwarded-For 的第一个地址
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
