package prometheus

import (
	"net/http"

	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client 进程内唯一的指标注册表
type Client struct {
	config     *Config
	registry   *prometheus.Registry
	registerer prometheus.Registerer
}

// New 创建 Prometheus 客户端
func New(cfg *Config) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if newCfg.EnableGoCollector {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if newCfg.EnableProcessCollector {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	var reg prometheus.Registerer = registry
	if len(newCfg.ConstLabels) > 0 {
		reg = prometheus.WrapRegistererWith(newCfg.ConstLabels, reg)
	}
	reg = prometheus.WrapRegistererWithPrefix(newCfg.Namespace+"_", reg)

	return &Client{
		config:     newCfg,
		registry:   registry,
		registerer: reg,
	}, nil
}

// Registry 底层注册表，Go/进程采集器不带命名空间前缀
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Registerer 组件注册指标用，自动加命名空间前缀与常量标签
func (c *Client) Registerer() prometheus.Registerer {
	return c.registerer
}

// Handler 返回 /metrics 处理器
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          c.registry,
	})
}
