package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 实时通道与消息服务的指标
type Metrics struct {
	registry *prometheus.Registry

	OnlineUsers      prometheus.Gauge
	Connections      prometheus.Gauge
	PushesDelivered  *prometheus.CounterVec
	PushesDropped    *prometheus.CounterVec
	EventsThrottled  prometheus.Counter
	MessagesSent     prometheus.Counter
	MessagesDeleted  prometheus.Counter
	FriendshipEvents *prometheus.CounterVec
}

// New 创建并注册全部指标，使用独立的 Registry，测试之间互不影响
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "online_users",
			Help:      "Users with a live realtime session.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "ws_connections",
			Help:      "Open websocket connections, including anonymous ones.",
		}),
		PushesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "push_delivered_total",
			Help:      "Events queued to a live session.",
		}, []string{"event"}),
		PushesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "push_dropped_total",
			Help:      "Events dropped because the session was gone or its queue was full.",
		}, []string{"event"}),
		EventsThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "ws_events_throttled_total",
			Help:      "Client events discarded by the per-session rate limit.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_sent_total",
			Help:      "Messages persisted.",
		}),
		MessagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_deleted_total",
			Help:      "Messages deleted by their sender.",
		}),
		FriendshipEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "friendship_transitions_total",
			Help:      "Successful friendship state transitions.",
		}, []string{"transition"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OnlineUsers,
		m.Connections,
		m.PushesDelivered,
		m.PushesDropped,
		m.EventsThrottled,
		m.MessagesSent,
		m.MessagesDeleted,
		m.FriendshipEvents,
	)
	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
