// Package metrics exposes engine events as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/engine"
)

// Collector implements engine.EventEmitter and keeps the recording counters
// in its own registry.
//
// Metrics:
//   - fieldlog_engine_state: current engine state as a number
//   - fieldlog_bytes_written_total: bytes written per device
//   - fieldlog_sessions_opened_total: files opened per device
//   - fieldlog_sessions_closed_total: files closed per device and reason
//   - fieldlog_session_duration_seconds: recorded duration of closed files
//   - fieldlog_faults_total: write and rotation faults per role and kind
//   - fieldlog_restarts: restart counter at the last fault
type Collector struct {
	registry *prometheus.Registry

	state        prometheus.Gauge
	bytesWritten *prometheus.CounterVec
	opened       *prometheus.CounterVec
	closed       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	faults       *prometheus.CounterVec
	restarts     prometheus.Gauge
}

// NewCollector registers the metrics with registry. A nil registry creates a
// private one.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "fieldlog"
	}
	c := &Collector{
		registry: registry,
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_state",
			Help:      "Engine state (0 idle, 1 configuring, 2 recording, 3 halted, 4 closed)",
		}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Sample bytes written to storage",
		}, []string{"device"}),
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Recording files opened",
		}, []string{"device"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Recording files closed",
		}, []string{"device", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Recorded duration of closed files",
			Buckets:   []float64{1, 10, 60, 300, 600, 1800, 3600},
		}, []string{"device"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Write and rotation faults",
		}, []string{"role", "kind"}),
		restarts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restarts",
			Help:      "Restart counter at the most recent fault",
		}),
	}
	registry.MustRegister(c.state, c.bytesWritten, c.opened, c.closed, c.duration, c.faults, c.restarts)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// OnStateChange implements engine.EventEmitter.
func (c *Collector) OnStateChange(previous, current engine.State, reason string) {
	c.state.Set(float64(current))
}

// OnSessionOpened implements engine.EventEmitter.
func (c *Collector) OnSessionOpened(s domain.FileSession) {
	c.opened.WithLabelValues(s.Device).Inc()
}

// OnSessionClosed implements engine.EventEmitter.
func (c *Collector) OnSessionClosed(s domain.FileSession) {
	c.closed.WithLabelValues(s.Device, s.CloseReason).Inc()
	c.duration.WithLabelValues(s.Device).Observe(s.Duration.Seconds())
}

// OnFault implements engine.EventEmitter.
func (c *Collector) OnFault(f domain.Fault) {
	role := "primary"
	if f.Backup {
		role = "backup"
	}
	c.faults.WithLabelValues(role, string(f.Kind)).Inc()
	c.restarts.Set(float64(f.Restarts))
}

// OnWrite implements engine.EventEmitter.
func (c *Collector) OnWrite(device string, n int) {
	c.bytesWritten.WithLabelValues(device).Add(float64(n))
}

var _ engine.EventEmitter = (*Collector)(nil)
