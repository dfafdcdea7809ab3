package core

import "time"

// Metrics defines the hooks for collecting engine metrics. Implementations
// can forward them to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods must be non-blocking and fast; they are called on dispatch and
// task completion paths.
type Metrics interface {
	// RecordDispatchDuration records one completed dispatch, from entry to
	// handle resolution. Status is one of "success", "failure", "cancelled".
	RecordDispatchDuration(storeName string, status string, duration time.Duration)

	// RecordTaskPanic records a panic recovered from a task operation or
	// handler.
	RecordTaskPanic(storeName string, panicInfo any)

	// RecordTaskCancelled records a task cancellation. Reason is one of
	// "explicit", "replaced", "teardown".
	RecordTaskCancelled(storeName string, reason string)

	// RecordLiveTasks records the current number of live tasks in the
	// registry.
	RecordLiveTasks(storeName string, count int)
}

// Dispatch status labels reported to Metrics.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// Cancellation reason labels reported to Metrics.
const (
	CancelReasonExplicit = "explicit"
	CancelReasonReplaced = "replaced"
	CancelReasonTeardown = "teardown"
)

// NilMetrics is the no-op default when no metrics sink is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordDispatchDuration(storeName string, status string, duration time.Duration) {
}

func (m *NilMetrics) RecordTaskPanic(storeName string, panicInfo any) {}

func (m *NilMetrics) RecordTaskCancelled(storeName string, reason string) {}

func (m *NilMetrics) RecordLiveTasks(storeName string, count int) {}

// RegistryStats is a point-in-time snapshot of the task registry.
type RegistryStats struct {
	Name      string
	Live      int
	Started   uint64
	Cancelled uint64
	Closed    bool
}

// StoreStats is a point-in-time snapshot of a store.
type StoreStats struct {
	Name       string
	Dispatches uint64
	Failures   uint64
	InFlight   int
	Closed     bool
}
