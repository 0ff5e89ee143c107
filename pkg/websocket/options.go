package websocket

import (
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// ServerOption 服务端选项
type ServerOption func(*Server)

// WithServerLogger 设置日志
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandler 设置连接生命周期处理器
func WithHandler(h MessageHandler) ServerOption {
	return func(s *Server) {
		s.handler = h
	}
}

// WithMiddleware 追加消息中间件
func WithMiddleware(mw ...Middleware) ServerOption {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithMetricsRegisterer 启用 Prometheus 指标
func WithMetricsRegisterer(r prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.metricsRegisterer = r
	}
}

// WithAuthenticator 设置升级前的认证函数
func WithAuthenticator(fn Authenticator) ServerOption {
	return func(s *Server) {
		s.authenticate = fn
	}
}

// WithAuthErrorEncoder 设置认证失败时的错误帧内容
func WithAuthErrorEncoder(fn AuthErrorEncoder) ServerOption {
	return func(s *Server) {
		s.authErrorEncoder = fn
	}
}

// WithDropObserver 出站消息因背压被丢弃时回调
func WithDropObserver(fn func(conn *Connection, msg *Message)) ServerOption {
	return func(s *Server) {
		s.onDrop = fn
	}
}
