package influxdb

import "time"

// Config InfluxDB 2.x 配置
type Config struct {
	URL    string `mapstructure:"url" json:"url"`
	Token  string `mapstructure:"token" json:"token"`
	Org    string `mapstructure:"org" json:"org"`
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// 单次写入超时
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	// 写入时附加的公共 tag
	DefaultTags map[string]string `mapstructure:"default_tags" json:"default_tags"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		URL:          "http://localhost:8086",
		Org:          "cargorelay",
		Bucket:       "realtime",
		WriteTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrEmptyURL
	}
	if c.Org == "" || c.Bucket == "" {
		return ErrEmptyBucket
	}
	return nil
}
