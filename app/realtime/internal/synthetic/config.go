package synthetic

// Config 演示数据生成配置，默认关闭
type Config struct {
	Enabled    bool     `mapstructure:"enabled"`
	Containers []string `mapstructure:"containers"`

	// cron 表达式，支持 @every
	ContainerSchedule string `mapstructure:"container_schedule" validate:"required"`
	MetricsSchedule   string `mapstructure:"metrics_schedule" validate:"required"`
	AlertSchedule     string `mapstructure:"alert_schedule" validate:"required"`

	// AlertChance 每次告警调度实际发布的概率
	AlertChance float64 `mapstructure:"alert_chance" validate:"gte=0,lte=1"`
	// Seed 非 0 时生成序列可复现
	Seed uint64 `mapstructure:"seed"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Containers:        []string{"MSKU1234567", "MSCU2345678", "HLBU3456789", "EVGU4567890"},
		ContainerSchedule: "@every 30s",
		MetricsSchedule:   "@every 10s",
		AlertSchedule:     "@every 1m",
		AlertChance:       0.3,
	}
}
