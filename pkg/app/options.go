package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Options 应用配置
type Options struct {
	ID          string
	Name        string
	StopTimeout time.Duration
	Logger      logger.Logger
}

// Option 配置函数
type Option func(*Options)

// DefaultOptions 默认配置，ID 为随机 uuid
func DefaultOptions() Options {
	return Options{
		ID:          uuid.NewString(),
		Name:        AppName,
		StopTimeout: 30 * time.Second,
		Logger:      logger.Default(),
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithID(id string) Option {
	return func(o *Options) {
		if id != "" {
			o.ID = id
		}
	}
}

func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

func WithStopTimeout(d time.Duration) Option {
	return func(o *Options) { o.StopTimeout = d }
}
