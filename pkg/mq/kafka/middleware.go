package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// LoggingMiddleware 记录消费耗时与失败
func LoggingMiddleware(log logger.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) error {
			start := time.Now()
			err := next(ctx, msg)
			if err != nil {
				log.Warn("message consume failed",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"duration", time.Since(start),
					"error", err,
				)
			}
			return err
		}
	}
}

// RecoveryMiddleware 捕获 panic，onPanic 可为 nil
func RecoveryMiddleware(log logger.Logger, onPanic func(recovered any)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("consumer panic recovered",
						"topic", msg.Topic,
						"offset", msg.Offset,
						"panic", r,
					)
					if onPanic != nil {
						onPanic(r)
					}
					err = fmt.Errorf("%w: %v", ErrConsumerPanic, r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

func chain(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
