// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Metrics contains the registry and the registered custom metrics.
type Metrics struct {
	config          Config
	registry        *prometheus.Registry
	peerConnections prometheus.Gauge
	subscribers     prometheus.Gauge
	cpuUsage        prometheus.Gauge
	memoryUsage     prometheus.Gauge
	received        *prometheus.CounterVec
	sent            prometheus.Counter
	keepAlives      *prometheus.CounterVec
	gatewayErrors   prometheus.Counter
	sessionTimeouts prometheus.Counter
}

// New creates a new Metrics instance with its own registry.
func New(config Config) *Metrics {
	ns := config.Namespace
	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
		peerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "webrtc_connections",
			Help:      "Current number of WebRTC connections.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "subscribers",
			Help:      "Current number of remote publishers subscribed to.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "cpu_usage_percentage",
			Help:      "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes.",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gateway_messages_received_total",
			Help:      "Messages received from the gateway.",
		}, []string{"kind"}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gateway_requests_sent_total",
			Help:      "Requests sent to the gateway.",
		}),
		keepAlives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "keepalives_total",
			Help:      "Keep-alive requests by result.",
		}, []string{"result"}), // Result: "ok" or "failed"
		gatewayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "gateway_errors_total",
			Help:      "Error messages reported by the gateway.",
		}),
		sessionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "session_timeouts_total",
			Help:      "Session timeout notifications.",
		}),
	}

	m.registry.MustRegister(
		m.peerConnections,
		m.subscribers,
		m.cpuUsage,
		m.memoryUsage,
		m.received,
		m.sent,
		m.keepAlives,
		m.gatewayErrors,
		m.sessionTimeouts,
	)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// UpdateSystemMetrics collects system metrics every interval until ctx is
// done.
func (m *Metrics) UpdateSystemMetrics(ctx context.Context) {
	interval := m.config.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.CollectSystemMetrics(); err != nil {
			log.Warn().Str("module", "metric").Err(err).Msg("failed to collect system metrics")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CollectSystemMetrics updates the CPU and memory gauges once.
func (m *Metrics) CollectSystemMetrics() error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("failed to read memory: %w", err)
	}
	m.memoryUsage.Set(float64(vm.Used))

	percents, err := cpu.Percent(0, false)
	if err != nil {
		return fmt.Errorf("failed to read cpu: %w", err)
	}
	if len(percents) > 0 {
		m.cpuUsage.Set(percents[0])
	}
	return nil
}

// IncrementWebRTCConnections increments the WebRTC connection count.
func (m *Metrics) IncrementWebRTCConnections() {
	m.peerConnections.Inc()
}

// DecrementWebRTCConnections decrements the WebRTC connection count.
func (m *Metrics) DecrementWebRTCConnections() {
	m.peerConnections.Dec()
}

// SetSubscribers sets the number of active subscribers.
func (m *Metrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}

// ObserveMessage counts a received message of the given kind.
func (m *Metrics) ObserveMessage(kind string) {
	m.received.WithLabelValues(kind).Inc()
}

// IncrementSent counts a request sent to the gateway.
func (m *Metrics) IncrementSent() {
	m.sent.Inc()
}

// ObserveKeepAlive counts a keep-alive by its result.
func (m *Metrics) ObserveKeepAlive(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.keepAlives.WithLabelValues(result).Inc()
}

// IncrementGatewayErrors counts an error reported by the gateway.
func (m *Metrics) IncrementGatewayErrors() {
	m.gatewayErrors.Inc()
}

// IncrementSessionTimeouts counts a session timeout notification.
func (m *Metrics) IncrementSessionTimeouts() {
	m.sessionTimeouts.Inc()
}
