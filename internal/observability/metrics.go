package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatRequests        *prometheus.CounterVec
	UpstreamAttempts    *prometheus.CounterVec
	UpstreamLatency     prometheus.Histogram
	MemoryWriteFailures prometheus.Counter
	ActiveWSConnections prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by response status class.",
		}, []string{"status"}),
		UpstreamAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream generation attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_attempt_seconds",
			Help:      "Latency of individual upstream attempts in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		MemoryWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_write_failures_total",
			Help:      "Best-effort rolling memory writes that failed.",
		}),
		ActiveWSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_ws_connections",
			Help:      "Number of open websocket chat connections.",
		}),
	}
}

func (m *Metrics) ObserveUpstreamAttempt(model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamAttempts.WithLabelValues(model, outcome).Inc()
	m.UpstreamLatency.Observe(elapsed.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
