package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Option 配置管理器选项
type Option func(*manager)

// WithDefaults 设置默认值（key 使用 "." 分隔的路径）
func WithDefaults(defaults map[string]any) Option {
	return func(m *manager) {
		for key, value := range defaults {
			m.v.SetDefault(key, value)
		}
	}
}

// WithConfigType 显式指定配置文件类型（yaml/json/toml）
func WithConfigType(configType string) Option {
	return func(m *manager) {
		m.v.SetConfigType(configType)
	}
}

// WithEnvPrefix 启用环境变量覆盖
// 例如前缀 CARGORELAY 时，bridge.transport 对应 CARGORELAY_BRIDGE_TRANSPORT
func WithEnvPrefix(prefix string) Option {
	return func(m *manager) {
		if prefix == "" {
			return
		}
		m.v.SetEnvPrefix(prefix)
		m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		m.v.AutomaticEnv()
	}
}

// WithViper 使用外部的 viper 实例
func WithViper(v *viper.Viper) Option {
	return func(m *manager) {
		if v != nil {
			m.v = v
		}
	}
}
