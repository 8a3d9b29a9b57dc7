// ABOUTME: Prometheus metrics for startup progress, viewers and gate decisions
// ABOUTME: Owns a private registry with Go/process collectors and a promhttp handler

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bootwatch"

// Metrics holds the startup collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	ComponentsInitialized prometheus.Counter
	StartupComplete       prometheus.Gauge
	StartupDuration       prometheus.Gauge
	ActiveViewers         prometheus.Gauge
	ViewersTotal          prometheus.Counter
	GateRequests          *prometheus.CounterVec
	GateRemovals          prometheus.Counter
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		ComponentsInitialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_initialized_total",
			Help:      "Number of components that finished initializing",
		}),
		StartupComplete: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "startup_complete",
			Help:      "1 once every component has been initialized",
		}),
		StartupDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "startup_duration_seconds",
			Help:      "Time from process start until startup completed",
		}),
		ActiveViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_viewers",
			Help:      "Number of connected progress stream viewers",
		}),
		ViewersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_viewers_total",
			Help:      "Number of progress stream subscriptions created",
		}),
		GateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_requests_total",
			Help:      "Requests intercepted during startup, by decision",
		}, []string{"decision"}),
		GateRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_removals_total",
			Help:      "Number of times the startup gate was removed from the pipeline",
		}),
	}

	m.registry.MustRegister(
		m.ComponentsInitialized,
		m.StartupComplete,
		m.StartupDuration,
		m.ActiveViewers,
		m.ViewersTotal,
		m.GateRequests,
		m.GateRemovals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// EventAppended implements progress.Recorder.
func (m *Metrics) EventAppended() {
	if m == nil {
		return
	}
	m.ComponentsInitialized.Inc()
}

// StartupCompleted implements progress.Recorder.
func (m *Metrics) StartupCompleted() {
	if m == nil {
		return
	}
	m.StartupComplete.Set(1)
	m.StartupDuration.Set(time.Since(m.started).Seconds())
}

// SubscriberAdded implements progress.Recorder.
func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.ActiveViewers.Inc()
	m.ViewersTotal.Inc()
}

// SubscriberRemoved implements progress.Recorder.
func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.ActiveViewers.Dec()
}

// GateDecision counts one intercepted request.
func (m *Metrics) GateDecision(decision string) {
	if m == nil {
		return
	}
	m.GateRequests.WithLabelValues(decision).Inc()
}

// GateRemoved counts a gate deregistration.
func (m *Metrics) GateRemoved() {
	if m == nil {
		return
	}
	m.GateRemovals.Inc()
}
