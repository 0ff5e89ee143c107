package websocket

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/logger"
	"golang.org/x/time/rate"
)

// Middleware 消息处理中间件
type Middleware func(HandlerFunc) HandlerFunc

// Chain 按声明顺序包装 handler，第一个中间件最先执行
func Chain(handler HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Recovery 捕获 handler panic，onPanic 可用于上报（例如 Sentry）
func Recovery(log logger.Logger, onPanic func(recovered any, stack []byte)) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(conn *Connection, msg *Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					log.Error("websocket handler panic recovered",
						"conn_id", conn.ID(),
						"panic", r,
						"stack", string(stack),
					)
					if onPanic != nil {
						onPanic(r, stack)
					}
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(conn, msg)
		}
	}
}

// Logging 记录每条消息的处理耗时（debug 级别）
func Logging(log logger.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(conn *Connection, msg *Message) error {
			start := time.Now()
			err := next(conn, msg)
			log.Debug("websocket message handled",
				"conn_id", conn.ID(),
				"size", len(msg.Data),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}
	}
}

const limiterKey = "_rate_limiter"

// RateLimitPerConnection 每连接令牌桶限流，超限消息直接丢弃并返回 ErrRateLimited
func RateLimitPerConnection(r float64, burst int) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(conn *Connection, msg *Message) error {
			v, ok := conn.GetMetadata(limiterKey)
			if !ok {
				v = rate.NewLimiter(rate.Limit(r), burst)
				conn.SetMetadata(limiterKey, v)
			}
			if !v.(*rate.Limiter).Allow() {
				return ErrRateLimited
			}
			return next(conn, msg)
		}
	}
}

// MaxMessageSize 拒绝超过 size 字节的消息
func MaxMessageSize(size int) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(conn *Connection, msg *Message) error {
			if size > 0 && len(msg.Data) > size {
				return ErrMessageTooLarge
			}
			return next(conn, msg)
		}
	}
}
