package websocket

import "github.com/prometheus/client_golang/prometheus"

// ServerMetrics 服务端指标
type ServerMetrics struct {
	activeConnections prometheus.Gauge
	totalConnections  prometheus.Counter
	rejected          *prometheus.CounterVec
	authFailures      prometheus.Counter
	messagesReceived  prometheus.Counter
	bytesReceived     prometheus.Counter
	droppedMessages   *prometheus.CounterVec
}

// NewServerMetrics 创建并注册服务端指标
func NewServerMetrics(registerer prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections",
		}),
		totalConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "rejected_total",
			Help:      "Connections rejected before upgrade",
		}, []string{"reason"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "auth_failures_total",
			Help:      "Connections closed because authentication failed",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "messages_received_total",
			Help:      "Total number of inbound messages",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "bytes_received_total",
			Help:      "Total inbound bytes",
		}),
		droppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "websocket",
			Subsystem: "server",
			Name:      "dropped_messages_total",
			Help:      "Outbound messages dropped by backpressure",
		}, []string{"priority"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.activeConnections,
			m.totalConnections,
			m.rejected,
			m.authFailures,
			m.messagesReceived,
			m.bytesReceived,
			m.droppedMessages,
		)
	}
	return m
}

func (m *ServerMetrics) OnConnectionOpened() {
	m.activeConnections.Inc()
	m.totalConnections.Inc()
}

func (m *ServerMetrics) OnConnectionClosed() {
	m.activeConnections.Dec()
}

func (m *ServerMetrics) OnRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) OnAuthFailure() {
	m.authFailures.Inc()
}

func (m *ServerMetrics) OnMessageReceived(size int) {
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(size))
}

func (m *ServerMetrics) OnDropped(p Priority) {
	m.droppedMessages.WithLabelValues(p.String()).Inc()
}
