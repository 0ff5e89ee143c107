package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Server 把 websocket.Server 适配为 app.Server
type Server struct {
	ws          *websocket.Server
	gateway     *Gateway
	stopTimeout time.Duration
	extra       []func(mux *http.ServeMux)
}

// NewServer 以网关为处理器创建 WebSocket 服务端
// reg 为 nil 时不注册连接指标
func NewServer(cfg *websocket.ServerConfig, gw *Gateway, reg prometheus.Registerer, opts ...websocket.ServerOption) (*Server, error) {
	base := []websocket.ServerOption{
		websocket.WithHandler(gw),
		websocket.WithAuthenticator(gw.Authenticate),
		websocket.WithAuthErrorEncoder(gw.EncodeAuthError),
		websocket.WithServerLogger(gw.logger),
		websocket.WithMiddleware(websocket.Recovery(gw.logger, gw.reportPanic)),
		websocket.WithDropObserver(gw.onDrop),
	}
	if reg != nil {
		base = append(base, websocket.WithMetricsRegisterer(reg))
	}

	ws, err := websocket.NewServer(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Server{ws: ws, gateway: gw, stopTimeout: 10 * time.Second}, nil
}

// Handler 挂载到外部 mux 时使用
func (s *Server) Handler() http.Handler {
	return s.ws.Handler()
}

// ConnectionCount 当前连接数
func (s *Server) ConnectionCount() int {
	return s.ws.ConnectionCount()
}

// Mount 在 WebSocket 端口上挂载额外路由，须在 Start 之前调用
func (s *Server) Mount(pattern string, h http.Handler) {
	s.extra = append(s.extra, func(mux *http.ServeMux) {
		mux.Handle(pattern, h)
	})
}

func (s *Server) Start() error {
	return s.ws.Start(context.Background(), s.extra...)
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()
	err := s.ws.Stop(ctx)
	_ = s.gateway.Close()
	return err
}
