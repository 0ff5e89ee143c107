package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
	"github.com/lk2023060901/cargorelay/pkg/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Server Web 服务核心结构
type Server struct {
	engine *gin.Engine
	config *Config
	logger logger.Logger

	registerer prometheus.Registerer
	onPanic    func(any)

	mu     sync.Mutex
	server *http.Server
}

// Option 服务选项
type Option func(*Server)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRegisterer 启用请求指标
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(s *Server) {
		s.registerer = r
	}
}

// WithPanicHook panic 被恢复后回调（用于上报 Sentry）
func WithPanicHook(fn func(any)) Option {
	return func(s *Server) {
		s.onPanic = fn
	}
}

// NewServer 创建 Web 服务
func NewServer(cfg *Config, opts ...Option) (*Server, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: newCfg,
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("web")

	gin.SetMode(newCfg.Mode)
	engine := gin.New()

	// 挂载基础中间件
	engine.Use(middleware.Recovery(s.logger, s.onPanic))
	engine.Use(middleware.Logger(s.logger))
	engine.Use(middleware.CORS(newCfg.CORS.AllowedOrigins, newCfg.CORS.MaxAge))
	if s.registerer != nil {
		engine.Use(middleware.NewMetrics(s.registerer).Handler())
	}

	s.engine = engine
	return s, nil
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler 接口
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 在 config.Addr 上异步监听，Addr 为空时直接返回
func (s *Server) Start() error {
	if s.config.Addr == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	srv := s.server

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	conc.Go(func() (struct{}, error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
		return struct{}{}, nil
	})
	return nil
}

// Stop 优雅关闭，最多等待 5 秒
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
