package telemetry

import (
	"context"
	"sync"
	"time"
)

// ResourceSample is one point-in-time reading of host resource usage.
type ResourceSample struct {
	Timestamp         time.Time `json:"timestamp"`
	MemoryUsedPercent float64   `json:"memory_used_percent"`
	DiskUsedPercent   float64   `json:"disk_used_percent"`
	CPUs              int       `json:"cpus"`
}

// SampleFunc produces a resource sample. The platform package supplies the
// real implementation; tests supply fakes.
type SampleFunc func() (ResourceSample, error)

// SampleSink receives samples for persistence. May be nil.
type SampleSink interface {
	RecordResourceSample(ctx context.Context, sample ResourceSample) error
}

// ResourceMonitor periodically samples host resources on its own timer.
// It never reads or mutates installation state and is the only concurrent
// activity in the installer besides trace export.
type ResourceMonitor struct {
	cfg     MonitorConfig
	log     *Logger
	metrics *Metrics
	sample  SampleFunc
	sink    SampleSink

	mu      sync.Mutex
	window  []ResourceSample
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewResourceMonitor creates a monitor. metrics and sink may be nil.
func NewResourceMonitor(cfg MonitorConfig, log *Logger, metrics *Metrics, sample SampleFunc, sink SampleSink) *ResourceMonitor {
	if log == nil {
		log = NopLogger()
	}
	return &ResourceMonitor{
		cfg:     cfg,
		log:     log.NewComponentLogger("monitor"),
		metrics: metrics,
		sample:  sample,
		sink:    sink,
	}
}

// Start launches the sampling goroutine. No-op when disabled.
func (m *ResourceMonitor) Start(ctx context.Context) {
	if !m.cfg.Enabled || m.sample == nil || m.started {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.started = true

	go m.run(ctx)
}

// Stop halts sampling and waits for the goroutine to exit.
func (m *ResourceMonitor) Stop() {
	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

// Window returns a copy of the bounded sample history.
func (m *ResourceMonitor) Window() []ResourceSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ResourceSample, len(m.window))
	copy(out, m.window)
	return out
}

func (m *ResourceMonitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *ResourceMonitor) collect(ctx context.Context) {
	sample, err := m.sample()
	if err != nil {
		m.log.WithError(err).Debug("Resource sample failed")
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.window = append(m.window, sample)
	if max := m.cfg.WindowSize; max > 0 && len(m.window) > max {
		m.window = m.window[len(m.window)-max:]
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetResourceSample(sample.MemoryUsedPercent, sample.DiskUsedPercent, sample.CPUs)
	}

	if m.sink != nil {
		if err := m.sink.RecordResourceSample(ctx, sample); err != nil {
			m.log.WithError(err).Debug("Resource sample not persisted")
		}
	}

	if m.cfg.MemoryAlertPercent > 0 && sample.MemoryUsedPercent > m.cfg.MemoryAlertPercent {
		m.log.Warnf("Memory usage high: %.1f%%", sample.MemoryUsedPercent)
	}
	if m.cfg.DiskAlertPercent > 0 && sample.DiskUsedPercent > m.cfg.DiskAlertPercent {
		m.log.Warnf("Disk usage high: %.1f%%", sample.DiskUsedPercent)
	}
}
