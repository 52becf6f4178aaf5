package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing, so library callers can opt out.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	DataFrames      *prometheus.CounterVec
	MalformedFrames prometheus.Counter
	ServerErrors    *prometheus.CounterVec
	WSMessages      *prometheus.CounterVec
	ConnectLatency  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active realtime voice sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		DataFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_channel_frames_total",
			Help:      "Realtime data channel frames by direction and event type.",
		}, []string{"direction", "type"}),
		MalformedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Inbound data channel frames dropped as malformed.",
		}),
		ServerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_errors_total",
			Help:      "Error events reported by the realtime provider.",
		}, []string{"type", "retryable"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Bridge websocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ConnectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_latency_ms",
			Help:      "Time from connect to applied remote description in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 1500, 2500, 4000, 7000, 10000},
		}),
	}
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveFrame(direction, eventType string) {
	if m == nil {
		return
	}
	m.DataFrames.WithLabelValues(direction, eventType).Inc()
}

func (m *Metrics) ObserveMalformed() {
	if m == nil {
		return
	}
	m.MalformedFrames.Inc()
}

func (m *Metrics) ObserveServerError(errType string, retryable bool) {
	if m == nil {
		return
	}
	r := "false"
	if retryable {
		r = "true"
	}
	m.ServerErrors.WithLabelValues(errType, r).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveConnectLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ConnectLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
