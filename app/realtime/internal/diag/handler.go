// Package diag 健康检查、连接统计与指标接口
package diag

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/metrics"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/registry"
	"github.com/lk2023060901/cargorelay/pkg/metrics/sliding"
	"github.com/lk2023060901/cargorelay/pkg/metrics/system"
)

// Connections 当前 WebSocket 连接数
type Connections interface {
	ConnectionCount() int
}

// Rooms 注册表统计
type Rooms interface {
	Stats() registry.Stats
}

// SystemStats 进程资源快照
type SystemStats interface {
	Stats() system.Stats
}

// HealthResponse GET /health
type HealthResponse struct {
	Status      string       `json:"status"`
	Connections int          `json:"connections"`
	Rooms       int          `json:"rooms"`
	Uptime      float64      `json:"uptime"`
	Timestamp   time.Time    `json:"timestamp"`
	System      SystemHealth `json:"system"`
}

// SystemHealth CPU 为进程使用率，Memory 为占主机内存百分比
type SystemHealth struct {
	CPU        float64 `json:"cpu"`
	Memory     float64 `json:"memory"`
	Goroutines int     `json:"goroutines"`
}

// StatsResponse GET /stats
type StatsResponse struct {
	TotalConnections  int            `json:"totalConnections"`
	ConnectionsByRole map[string]int `json:"connectionsByRole"`
	ActiveRooms       int            `json:"activeRooms"`
	Uptime            float64        `json:"uptime"`
	Dropped           uint64         `json:"dropped"`
	Pipeline          sliding.Stats  `json:"pipeline"`
}

// Handler 诊断接口
type Handler struct {
	conns     Connections
	rooms     Rooms
	system    SystemStats
	metrics   *metrics.Metrics
	metricsH  http.Handler
	startedAt time.Time
	now       func() time.Time
}

// Option 选项
type Option func(*Handler)

// WithSystem 启用 /health 的 system 段
func WithSystem(s SystemStats) Option {
	return func(h *Handler) {
		h.system = s
	}
}

// WithMetrics 提供丢弃计数与流水线窗口统计
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithMetricsHandler /metrics 的处理器，未设置时不注册该路由
func WithMetricsHandler(mh http.Handler) Option {
	return func(h *Handler) {
		h.metricsH = mh
	}
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler 创建诊断处理器，uptime 从此刻起算
func NewHandler(conns Connections, rooms Rooms, opts ...Option) *Handler {
	h := &Handler{
		conns: conns,
		rooms: rooms,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.now()
	return h
}

// Register 注册路由
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	if h.metricsH != nil {
		r.GET("/metrics", gin.WrapH(h.metricsH))
	}
}

// Health 存活与资源概况
func (h *Handler) Health(c *gin.Context) {
	now := h.now()
	resp := HealthResponse{
		Status:      "healthy",
		Connections: h.conns.ConnectionCount(),
		Rooms:       h.rooms.Stats().Rooms,
		Uptime:      now.Sub(h.startedAt).Seconds(),
		Timestamp:   now,
	}
	if h.system != nil {
		s := h.system.Stats()
		resp.System = SystemHealth{CPU: s.CPUPercent, Memory: s.MemoryPercent, Goroutines: s.Goroutines}
	}
	c.JSON(http.StatusOK, resp)
}

// Stats 连接与房间统计
func (h *Handler) Stats(c *gin.Context) {
	rs := h.rooms.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		TotalConnections:  h.conns.ConnectionCount(),
		ConnectionsByRole: rs.ByRole,
		ActiveRooms:       rs.Rooms,
		Uptime:            h.now().Sub(h.startedAt).Seconds(),
		Dropped:           h.metrics.Dropped(),
		Pipeline:          h.metrics.PipelineStats(),
	})
}
