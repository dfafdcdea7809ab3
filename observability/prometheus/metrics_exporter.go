package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/soracane/fluxion/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	dispatchDurationSeconds *prom.HistogramVec
	taskPanicTotal          *prom.CounterVec
	taskCancelledTotal      *prom.CounterVec
	liveTasks               *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "fluxion"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Dispatch duration from entry to handle resolution, in seconds.",
		Buckets:   buckets,
	}, []string{"store", "status"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of panics recovered from tasks and handlers.",
	}, []string{"store"})
	cancelledVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_cancelled_total",
		Help:      "Total number of cancelled tasks.",
	}, []string{"store", "reason"})
	liveVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "live_tasks",
		Help:      "Current number of live tasks in the registry.",
	}, []string{"store"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if cancelledVec, err = registerCollector(reg, cancelledVec); err != nil {
		return nil, err
	}
	if liveVec, err = registerCollector(reg, liveVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		dispatchDurationSeconds: durationVec,
		taskPanicTotal:          panicVec,
		taskCancelledTotal:      cancelledVec,
		liveTasks:               liveVec,
	}, nil
}

// RecordDispatchDuration records one completed dispatch.
func (m *MetricsExporter) RecordDispatchDuration(storeName string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDurationSeconds.
		WithLabelValues(normalizeLabel(storeName, "unknown"), normalizeLabel(status, "unknown")).
		Observe(duration.Seconds())
}

// RecordTaskPanic records a recovered panic.
func (m *MetricsExporter) RecordTaskPanic(storeName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(storeName, "unknown")).Inc()
}

// RecordTaskCancelled records a task cancellation.
func (m *MetricsExporter) RecordTaskCancelled(storeName string, reason string) {
	if m == nil {
		return
	}
	m.taskCancelledTotal.
		WithLabelValues(normalizeLabel(storeName, "unknown"), normalizeLabel(reason, "unknown")).
		Inc()
}

// RecordLiveTasks records the current registry size.
func (m *MetricsExporter) RecordLiveTasks(storeName string, count int) {
	if m == nil {
		return
	}
	m.liveTasks.WithLabelValues(normalizeLabel(storeName, "unknown")).Set(float64(count))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
