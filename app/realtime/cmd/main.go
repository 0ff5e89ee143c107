package main

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/bridge"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/diag"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/gateway"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/pipeline"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/registry"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/risk"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/router"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/store"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/synthetic"
	"github.com/lk2023060901/cargorelay/pkg/app"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/database/influxdb"
	"github.com/lk2023060901/cargorelay/pkg/idgen"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/metrics/system"
	"github.com/lk2023060901/cargorelay/pkg/notify"
	"github.com/lk2023060901/cargorelay/pkg/notify/webhook"
	"github.com/lk2023060901/cargorelay/pkg/pool/bytebuff"
	"github.com/lk2023060901/cargorelay/pkg/prometheus"
	"github.com/lk2023060901/cargorelay/pkg/security"
	"github.com/lk2023060901/cargorelay/pkg/sentry"
	"github.com/lk2023060901/cargorelay/pkg/web"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
)

// Config realtime 服务配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// 节点标识，为空时使用 BaseApp 生成的 uuid，用于跨节点去重
	NodeID string `mapstructure:"node_id"`

	// WebSocket 网关
	WebSocket websocket.ServerConfig `mapstructure:"websocket"`

	// 诊断 HTTP，web.addr 为空时挂载到 WebSocket 端口
	Web web.Config `mapstructure:"web"`

	JWT security.JWTConfig `mapstructure:"jwt"`

	Bridge bridge.Config `mapstructure:"bridge"`
	Store  store.Config  `mapstructure:"store"`

	Prometheus prometheus.Config `mapstructure:"prometheus"`
	Metrics    metrics.Config    `mapstructure:"metrics"`

	Sentry sentry.Config `mapstructure:"sentry"`
	IDGen  idgen.Config  `mapstructure:"idgen"`

	History    HistoryConfig    `mapstructure:"history"`
	Escalation EscalationConfig `mapstructure:"escalation"`

	Synthetic synthetic.Config `mapstructure:"synthetic"`
}

// HistoryConfig 风险评估历史
type HistoryConfig struct {
	Enabled  bool            `mapstructure:"enabled"`
	InfluxDB influxdb.Config `mapstructure:"influxdb"`
}

// EscalationConfig 严重告警外发，webhook.url 为空时关闭
type EscalationConfig struct {
	Webhook  webhook.Config `mapstructure:"webhook"`
	Service  string         `mapstructure:"service"`
	Throttle time.Duration  `mapstructure:"throttle"`
}

func defaultConfig() Config {
	return Config{
		WebSocket: *websocket.DefaultServerConfig(),
		Bridge:    *bridge.DefaultConfig(),
		Store:     *store.DefaultConfig(),
		Metrics:   *metrics.DefaultConfig(),
		Synthetic: *synthetic.DefaultConfig(),
		Escalation: EscalationConfig{
			Service:  "cargorelay",
			Throttle: time.Minute,
		},
	}
}

func main() {
	cfg := defaultConfig()

	// 1. 加载配置
	mgr, err := app.LoadConfig(&cfg)
	if err != nil {
		panic(err)
	}

	// 2. 初始化 Logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}
	logger.SetDefault(l)
	defer l.Sync()

	// 配置文件中的 log.level 修改后热更新
	if err := logger.WatchLevel(mgr, "log.level", l); err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		l.Warn("failed to watch config file", "error", err)
	}

	opts := []app.Option{
		app.WithName("realtime"),
		app.WithLogger(l),
	}
	if cfg.NodeID != "" {
		opts = append(opts, app.WithID(cfg.NodeID))
	}
	application := app.NewBaseApp(opts...)
	origin := application.ID()

	// 3. 指标与错误上报
	promClient, err := prometheus.New(&cfg.Prometheus)
	if err != nil {
		l.Error("failed to create prometheus client", "error", err)
		return
	}
	hubMetrics, err := metrics.New(&cfg.Metrics, promClient.Registerer())
	if err != nil {
		l.Error("failed to create metrics", "error", err)
		return
	}

	reporter, err := sentry.New(&cfg.Sentry)
	if err != nil {
		l.Error("failed to create sentry client", "error", err)
		return
	}
	application.AppendCloser(reporter)

	// 4. 事件工厂与规范化
	ids, err := idgen.NewSonyflake(cfg.IDGen)
	if err != nil {
		l.Error("failed to create id generator", "error", err)
		return
	}
	bufs := bytebuff.NewPool()
	factory := event.NewFactory(ids,
		event.WithOrigin(origin),
		event.WithBufferPool(bufs),
	)

	norm, err := normalizer.New(factory, normalizer.WithLogger(l.Named("normalizer")))
	if err != nil {
		l.Error("failed to create normalizer", "error", err)
		return
	}

	// 5. 订阅注册表与快照存储
	reg := registry.New(registry.WithLogger(l.Named("registry")))

	reader, closeReader, err := store.NewReader(context.Background(), &cfg.Store, l.Named("store"))
	if err != nil {
		l.Error("failed to create store reader", "backend", cfg.Store.Backend, "error", err)
		return
	}
	application.AppendCloser(app.CloserFunc(closeReader))

	st, err := store.New(&cfg.Store, reader, store.WithLogger(l.Named("store")))
	if err != nil {
		l.Error("failed to create store", "error", err)
		return
	}

	// 6. 扇出路由与处理管线
	sessions := gateway.NewSessions()
	rt := router.New(reg, sessions,
		router.WithLogger(l.Named("router")),
		router.WithMetrics(hubMetrics),
	)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(l.Named("pipeline")),
		pipeline.WithMetrics(hubMetrics),
	}
	if cfg.History.Enabled {
		influx, err := influxdb.New(&cfg.History.InfluxDB, influxdb.WithLogger(l.Named("influxdb")))
		if err != nil {
			l.Error("failed to create influxdb client", "error", err)
			return
		}
		application.AppendCloser(influx)
		pipelineOpts = append(pipelineOpts, pipeline.WithSink(pipeline.NewInfluxSink(influx)))
	}
	if cfg.Escalation.Webhook.URL != "" {
		hook, err := webhook.New(&cfg.Escalation.Webhook, webhook.WithLogger(l.Named("webhook")))
		if err != nil {
			l.Error("failed to create webhook notifier", "error", err)
			return
		}
		escalator := pipeline.NewWebhookEscalator(notify.NewThrottle(hook, cfg.Escalation.Throttle), cfg.Escalation.Service)
		pipelineOpts = append(pipelineOpts, pipeline.WithEscalator(escalator))
	}
	pl := pipeline.New(norm, st, risk.NewEngine(), factory, rt, pipelineOpts...)
	application.AppendCloser(pl)

	// 7. 消息代理桥
	transport, err := bridge.NewTransport(&cfg.Bridge, origin, l.Named("bridge"))
	if err != nil {
		l.Error("failed to create bridge transport", "transport", cfg.Bridge.Transport, "error", err)
		return
	}
	br, err := bridge.New(&cfg.Bridge, transport, pl.Handle,
		bridge.WithLogger(l.Named("bridge")),
		bridge.WithMetrics(hubMetrics),
		bridge.WithReporter(reporter),
		bridge.WithOrigin(origin),
		bridge.WithBufferPool(bufs),
	)
	if err != nil {
		l.Error("failed to create bridge", "error", err)
		return
	}

	// 8. WebSocket 网关
	jwtManager, err := security.NewJWTManager(&cfg.JWT)
	if err != nil {
		l.Error("failed to create jwt manager", "error", err)
		return
	}
	gw, err := gateway.New(jwtManager, reg, sessions, rt, st, factory,
		gateway.WithLogger(l.Named("gateway")),
		gateway.WithMetrics(hubMetrics),
		gateway.WithReporter(reporter),
		gateway.WithPublisher(br, cfg.Bridge.PublishTimeout),
		gateway.WithRepublishWorkers(cfg.Bridge.PublishWorkers),
	)
	if err != nil {
		l.Error("failed to create gateway", "error", err)
		return
	}
	wsServer, err := gateway.NewServer(&cfg.WebSocket, gw, promClient.Registerer())
	if err != nil {
		l.Error("failed to create websocket server", "error", err)
		return
	}

	// 9. 诊断接口
	collector, err := system.New()
	if err != nil {
		l.Error("failed to create system collector", "error", err)
		return
	}
	sampler := diag.NewSampler(collector, cfg.Metrics.SystemCollectInterval)

	webServer, err := web.NewServer(&cfg.Web,
		web.WithLogger(l),
		web.WithMetricsRegisterer(promClient.Registerer()),
		web.WithPanicHook(func(rec any) {
			reporter.CapturePanic(rec, map[string]string{"component": "web"})
		}),
	)
	if err != nil {
		l.Error("failed to create web server", "error", err)
		return
	}
	diag.NewHandler(wsServer, reg,
		diag.WithSystem(sampler),
		diag.WithMetrics(hubMetrics),
		diag.WithMetricsHandler(promClient.Handler()),
	).Register(webServer.Router())
	if cfg.Web.Addr == "" {
		wsServer.Mount("/", webServer.Handler())
	}

	application.AppendServer(sampler, br, wsServer, webServer)

	// 10. 演示数据
	if cfg.Synthetic.Enabled {
		gen, err := synthetic.New(&cfg.Synthetic, br, synthetic.WithLogger(l.Named("synthetic")))
		if err != nil {
			l.Error("failed to create synthetic generator", "error", err)
			return
		}
		application.AppendServer(gen)
	}

	// 11. 运行
	l.Info("starting realtime hub",
		"node_id", origin,
		"websocket_addr", cfg.WebSocket.Addr,
		"transport", cfg.Bridge.Transport,
		"store", cfg.Store.Backend,
	)
	if err := application.Run(); err != nil {
		l.Error("realtime hub exited with error", "error", err)
	}
}
