package prometheus

// Config Prometheus 配置
type Config struct {
	// 命名空间，所有组件指标都带此前缀
	Namespace string `mapstructure:"namespace" json:"namespace"`

	// 常量标签，例如 instance
	ConstLabels map[string]string `mapstructure:"const_labels" json:"const_labels"`

	EnableGoCollector      bool `mapstructure:"enable_go_collector" json:"enable_go_collector"`
	EnableProcessCollector bool `mapstructure:"enable_process_collector" json:"enable_process_collector"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Namespace:              "cargorelay",
		EnableGoCollector:      true,
		EnableProcessCollector: true,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return ErrInvalidConfig
	}
	return nil
}
