// Package metrics exposes export pipeline metrics for Prometheus.
package metrics

import (
	"net/http"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dataporter"

// Metrics implements core.Recorder on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Table exports
	exportsTotal   *prometheus.CounterVec
	rowsExported   *prometheus.CounterVec
	bytesWritten   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec

	// Procedure execution
	executionsTotal   *prometheus.CounterVec
	rowsAffected      *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	// Workflows
	workflowsTotal *prometheus.CounterVec
}

var _ core.Recorder = (*Metrics)(nil)

// New creates a Metrics instance with its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		exportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of table exports by format and terminal status",
			},
			[]string{"format", "status"},
		),

		rowsExported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_rows_total",
				Help:      "Total number of data rows written to export files",
			},
			[]string{"format"},
		),

		bytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_bytes_total",
				Help:      "Total size of export files written",
			},
			[]string{"format"},
		),

		exportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of single-table exports, query included",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5.5m
			},
			[]string{"format"},
		),

		executionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of procedure executions by result",
			},
			[]string{"procedure", "result"},
		),

		rowsAffected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "execution_rows_affected_total",
				Help:      "Total rows reported as affected by procedure executions",
			},
			[]string{"procedure"},
		),

		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of procedure executions",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
			},
			[]string{"procedure"},
		),

		workflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_total",
				Help:      "Total number of execute-then-export workflows by result",
			},
			[]string{"procedure", "result"},
		),
	}
}

// TrackCorrelations registers a gauge reporting the tracker's active contexts.
func (m *Metrics) TrackCorrelations(tracker *core.Tracker) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlations_active",
			Help:      "Number of operations currently in progress",
		},
		func() float64 { return float64(tracker.ActiveCount()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlations_tracked",
			Help:      "Number of correlation contexts held, finished ones included",
		},
		func() float64 { return float64(tracker.Len()) },
	))
}

// ObserveExport records one table export.
func (m *Metrics) ObserveExport(o core.ExportOutcome) {
	format := string(o.Format)
	m.exportsTotal.WithLabelValues(format, string(o.Status)).Inc()
	m.exportDuration.WithLabelValues(format).Observe(o.Elapsed.Seconds())
	if o.RecordsExported > 0 {
		m.rowsExported.WithLabelValues(format).Add(float64(o.RecordsExported))
	}
	if o.FileSizeBytes > 0 {
		m.bytesWritten.WithLabelValues(format).Add(float64(o.FileSizeBytes))
	}
}

// ObserveExecution records one procedure execution.
func (m *Metrics) ObserveExecution(procedure string, o core.ExecutionOutcome) {
	m.executionsTotal.WithLabelValues(procedure, result(o.Success)).Inc()
	m.executionDuration.WithLabelValues(procedure).Observe(o.Elapsed.Seconds())
	if o.RecordsAffected > 0 {
		m.rowsAffected.WithLabelValues(procedure).Add(float64(o.RecordsAffected))
	}
}

// ObserveWorkflow records one workflow.
func (m *Metrics) ObserveWorkflow(o core.WorkflowOutcome) {
	m.workflowsTotal.WithLabelValues(o.Procedure, result(o.Success)).Inc()
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
