// Package metrics exposes pipeline counters to Prometheus. The Metrics
// type doubles as an executor.Subscriber so it can be attached to the
// manager and fed from pipeline callbacks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visionflow/visionflow/internal/executor"
)

// Metrics holds the Prometheus collectors for the pipeline fleet.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed *prometheus.CounterVec
	nodeErrors      *prometheus.CounterVec
	analyticsEvents *prometheus.CounterVec
	pipelineRunning *prometheus.GaugeVec
	stateChanges    *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visionflow_frames_processed_total",
			Help: "Frames processed per pipeline.",
		}, []string{"pipeline"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visionflow_node_errors_total",
			Help: "Node processing failures per pipeline and node.",
		}, []string{"pipeline", "node"}),
		analyticsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visionflow_analytics_reports_total",
			Help: "Analytics reports published per pipeline and node.",
		}, []string{"pipeline", "node"}),
		pipelineRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "visionflow_pipeline_running",
			Help: "Whether a pipeline is currently running (1) or not (0).",
		}, []string{"pipeline"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visionflow_pipeline_state_changes_total",
			Help: "Pipeline state transitions by target state.",
		}, []string{"pipeline", "state"}),
	}
	m.registry.MustRegister(
		m.framesProcessed,
		m.nodeErrors,
		m.analyticsEvents,
		m.pipelineRunning,
		m.stateChanges,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnStateChange implements executor.Subscriber.
func (m *Metrics) OnStateChange(pipeline string, from, to executor.State) {
	m.stateChanges.WithLabelValues(pipeline, string(to)).Inc()
	switch to {
	case executor.StateRunning:
		m.pipelineRunning.WithLabelValues(pipeline).Set(1)
	case executor.StateStopped, executor.StateError, executor.StatePaused:
		m.pipelineRunning.WithLabelValues(pipeline).Set(0)
	}
}

// OnFrameProcessed implements executor.Subscriber.
func (m *Metrics) OnFrameProcessed(pipeline string, payload map[string]any) {
	m.framesProcessed.WithLabelValues(pipeline).Inc()
}

// OnAnalytics implements executor.Subscriber.
func (m *Metrics) OnAnalytics(pipeline string, nodeID string, report map[string]any) {
	m.analyticsEvents.WithLabelValues(pipeline, nodeID).Inc()
}

// OnError implements executor.Subscriber.
func (m *Metrics) OnError(pipeline string, nodeID string, err error) {
	m.nodeErrors.WithLabelValues(pipeline, nodeID).Inc()
}
