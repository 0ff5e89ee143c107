package logger

import "sync"

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

// InitDefault 用配置初始化全局默认 logger
func InitDefault(cfg *Config, opts ...Option) (Logger, error) {
	l, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	SetDefault(l)
	return l, nil
}

// SetDefault 替换全局默认 logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default 返回全局默认 logger，未初始化时懒加载控制台 logger
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		bl, err := New(DefaultConfig())
		if err != nil {
			defaultLogger = NewNoop()
		} else {
			defaultLogger = bl
		}
	}
	return defaultLogger
}
