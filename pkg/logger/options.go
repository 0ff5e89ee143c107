package logger

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 中提取日志字段
type ContextFieldExtractor func(ctx context.Context) []zap.Field

func noContextFields(context.Context) []zap.Field { return nil }

// Option 配置选项
type Option func(*BaseLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *BaseLogger) {
		l.name = name
	}
}

// WithGlobalFields 追加全局字段（键值对）
func WithGlobalFields(keysAndValues ...any) Option {
	return func(l *BaseLogger) {
		for i := 0; i+1 < len(keysAndValues); i += 2 {
			if key, ok := keysAndValues[i].(string); ok {
				l.globalFields[key] = keysAndValues[i+1]
			}
		}
	}
}

// WithWriter 追加一个输出目标，主要用于测试捕获日志
func WithWriter(w io.Writer) Option {
	return func(l *BaseLogger) {
		l.extraWriters = append(l.extraWriters, w)
	}
}

// WithContextExtractor 设置 context 字段提取器
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *BaseLogger) {
		if fn != nil {
			l.contextExtractor = fn
		}
	}
}
