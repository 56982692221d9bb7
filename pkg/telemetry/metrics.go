package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the installer.
type Metrics struct {
	config MetricsConfig

	// Session metrics
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec

	// Stage metrics
	stagesExecuted *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	stepRetries   *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec

	// Dependency metrics
	dependencyProbes   *prometheus.CounterVec
	dependencyInstalls *prometheus.CounterVec
	installDuration    *prometheus.HistogramVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// Resource monitor metrics
	memoryUsedPercent prometheus.Gauge
	diskUsedPercent   prometheus.Gauge
	cpuCount          prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of installation sessions started",
			},
			[]string{"mode"},
		),
		sessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_completed_total",
				Help:      "Total number of installation sessions completed",
			},
			[]string{"status"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of installation sessions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		stagesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_executed_total",
				Help:      "Total number of installation stages executed",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of installation stages in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of atomic steps executed",
			},
			[]string{"status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of atomic step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),
		stepRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_retries_total",
				Help:      "Total number of step retry cycles",
			},
			[]string{"step"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total number of step rollbacks invoked",
			},
			[]string{"step"},
		),

		dependencyProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_probes_total",
				Help:      "Total number of dependency status probes",
			},
			[]string{"tool", "satisfied"},
		),
		dependencyInstalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_installs_total",
				Help:      "Total number of dependency install method attempts",
			},
			[]string{"tool", "method", "outcome"},
		),
		installDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependency_install_duration_seconds",
				Help:      "Duration of dependency install method attempts in seconds",
				Buckets:   buckets,
			},
			[]string{"tool", "method"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by failure kind",
			},
			[]string{"kind"},
		),

		memoryUsedPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_used_percent",
				Help:      "Host memory usage sampled by the resource monitor",
			},
		),
		diskUsedPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "disk_used_percent",
				Help:      "Install volume disk usage sampled by the resource monitor",
			},
		),
		cpuCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cpu_count",
				Help:      "Logical CPU count of the host",
			},
		),
	}

	registry.MustRegister(
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionDuration,
		m.stagesExecuted,
		m.stageDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.stepRetries,
		m.rollbacks,
		m.dependencyProbes,
		m.dependencyInstalls,
		m.installDuration,
		m.errorsByKind,
		m.memoryUsedPercent,
		m.diskUsedPercent,
		m.cpuCount,
	)

	return m, nil
}

// Session Metrics

// RecordSessionStarted increments the counter for started sessions.
func (m *Metrics) RecordSessionStarted(mode string) {
	if m.sessionsStarted == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(mode).Inc()
}

// RecordSessionCompleted records a finished session with its status and duration.
func (m *Metrics) RecordSessionCompleted(status string, duration time.Duration) {
	if m.sessionsCompleted == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(status).Inc()
	m.sessionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Stage Metrics

// RecordStage records the execution of a named stage.
func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	if m.stagesExecuted == nil {
		return
	}
	m.stagesExecuted.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Step Metrics

// RecordStep records the terminal status and duration of a step.
func (m *Metrics) RecordStep(step, status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepRetry records one retry cycle of a step.
func (m *Metrics) RecordStepRetry(step string) {
	if m.stepRetries == nil {
		return
	}
	m.stepRetries.WithLabelValues(step).Inc()
}

// RecordRollback records a rollback invocation for a step.
func (m *Metrics) RecordRollback(step string) {
	if m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(step).Inc()
}

// Dependency Metrics

// RecordDependencyProbe records one dependency status probe.
func (m *Metrics) RecordDependencyProbe(tool string, satisfied bool) {
	if m.dependencyProbes == nil {
		return
	}
	m.dependencyProbes.WithLabelValues(tool, fmt.Sprintf("%t", satisfied)).Inc()
}

// RecordDependencyInstall records one install method attempt.
func (m *Metrics) RecordDependencyInstall(tool, method, outcome string, duration time.Duration) {
	if m.dependencyInstalls == nil {
		return
	}
	m.dependencyInstalls.WithLabelValues(tool, method, outcome).Inc()
	m.installDuration.WithLabelValues(tool, method).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records an error by failure kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Resource Monitor Metrics

// SetResourceSample updates the resource monitor gauges.
func (m *Metrics) SetResourceSample(memUsedPercent, diskUsedPercent float64, cpus int) {
	if m.memoryUsedPercent == nil {
		return
	}
	m.memoryUsedPercent.Set(memUsedPercent)
	m.diskUsedPercent.Set(diskUsedPercent)
	m.cpuCount.Set(float64(cpus))
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
