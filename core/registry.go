package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// liveUnit is the handle to one currently executing task, owned exclusively
// by the registry and keyed by its identity.
type liveUnit[R any] struct {
	id       string
	name     string
	priority Priority
	cancel   context.CancelFunc
	handle   *Handle[R]
}

// Registry owns the set of live asynchronous tasks, keyed by identity. It
// enforces single-flight per identity: at most one live task exists for any
// identity at any instant. All mutations of the tracking table — insert on
// start, remove on completion, remove-and-cancel on explicit cancel or
// teardown — hold the same lock.
type Registry[S, R any] struct {
	mu     sync.Mutex
	units  map[string]*liveUnit[R]
	closed bool

	state   *StateRef[S]
	logger  Logger
	metrics Metrics
	name    string

	started   atomic.Uint64
	cancelled atomic.Uint64
}

func newRegistry[S, R any](name string, state *StateRef[S], logger Logger, metrics Metrics) *Registry[S, R] {
	return &Registry[S, R]{
		units:   make(map[string]*liveUnit[R]),
		state:   state,
		logger:  logger,
		metrics: metrics,
		name:    name,
	}
}

// Run starts the task described by eff and returns its handle. Any live task
// under the same identity is cancelled and removed from tracking first; this
// happens regardless of the effect's cancelInFlight flag, as a safety net
// against orphaned duplicate work. The task's context derives from ctx, so
// cancelling the dispatch cancels the task.
func (g *Registry[S, R]) Run(ctx context.Context, eff Effect[S, R]) *Handle[R] {
	handle := newHandle[R]()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		handle.fail(ErrStoreClosed)
		return handle
	}

	if prev, ok := g.units[eff.id]; ok {
		if eff.cancelInFlight {
			g.logger.Debug("replacing in-flight task",
				F("store", g.name), F("task", eff.id))
		} else {
			g.logger.Warn("identity collision, cancelling previous task",
				F("store", g.name), F("task", eff.id))
		}
		g.evictLocked(prev, CancelReasonReplaced)
	}

	unitCtx, cancel := context.WithCancel(ctx)
	unit := &liveUnit[R]{
		id:       eff.id,
		name:     eff.name,
		priority: eff.priority,
		cancel:   cancel,
		handle:   handle,
	}
	g.units[eff.id] = unit
	g.started.Add(1)
	g.metrics.RecordLiveTasks(g.name, len(g.units))
	g.mu.Unlock()

	go g.execute(unitCtx, unit, eff)

	return handle
}

// execute runs the operation on its own goroutine and settles the unit's
// handle. The deferred finish removes the unit from tracking exactly once,
// on every path: success, error, panic, cancellation.
func (g *Registry[S, R]) execute(ctx context.Context, unit *liveUnit[R], eff Effect[S, R]) {
	defer g.finish(unit)

	result, err := g.runOperation(ctx, unit.id, eff.op)

	if err != nil && ctx.Err() != nil && !isCancellation(err) {
		// The operation surfaced its own error only because it was
		// cancelled underneath; report the cancellation.
		err = ErrCancelled
	}

	if err != nil && eff.onError != nil && !isCancellation(err) {
		// Side channel for state mutation; the error itself still
		// propagates through the handle below.
		if uerr := g.state.Update(context.Background(), func(s *S) {
			eff.onError(err, s)
		}); uerr != nil {
			g.logger.Warn("error handler skipped",
				F("store", g.name), F("task", unit.id), F("error", uerr))
		}
	}

	// No-op if the unit was already cancelled and its handle failed.
	unit.handle.resolve(result, err)
}

func (g *Registry[S, R]) runOperation(ctx context.Context, id string, op Operation[S, R]) (result R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = PanicError{TaskID: id, Value: rec}
			g.metrics.RecordTaskPanic(g.name, rec)
			g.logger.Error("task panicked",
				F("store", g.name), F("task", id), F("panic", rec))
		}
	}()
	return op(ctx, g.state)
}

// finish removes the unit from tracking if it is still the registered one;
// a replacement under the same identity must not be evicted by its
// predecessor's cleanup.
func (g *Registry[S, R]) finish(unit *liveUnit[R]) {
	g.mu.Lock()
	if current, ok := g.units[unit.id]; ok && current == unit {
		delete(g.units, unit.id)
		g.metrics.RecordLiveTasks(g.name, len(g.units))
	}
	g.mu.Unlock()
	unit.cancel()
}

// Cancel signals cancellation to every live task matching ids and removes
// them from tracking immediately; the underlying operations may take
// arbitrarily long to actually stop. Unknown identities are no-ops.
func (g *Registry[S, R]) Cancel(ids ...string) {
	g.mu.Lock()
	for _, id := range ids {
		unit, ok := g.units[id]
		if !ok {
			continue
		}
		g.logger.Debug("cancelling task", F("store", g.name), F("task", id))
		g.evictLocked(unit, CancelReasonExplicit)
	}
	g.mu.Unlock()
}

// evictLocked cancels a unit, fails its handle, and removes it from
// tracking. Caller holds g.mu.
func (g *Registry[S, R]) evictLocked(unit *liveUnit[R], reason string) {
	unit.cancel()
	unit.handle.fail(ErrCancelled)
	delete(g.units, unit.id)
	g.cancelled.Add(1)
	g.metrics.RecordTaskCancelled(g.name, reason)
	g.metrics.RecordLiveTasks(g.name, len(g.units))
}

// Close cancels every remaining live task and rejects subsequent Run calls.
// It takes the same lock as Run and Cancel, so teardown never races with a
// task being started.
func (g *Registry[S, R]) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	for _, unit := range g.units {
		unit.cancel()
		unit.handle.fail(ErrCancelled)
		g.cancelled.Add(1)
		g.metrics.RecordTaskCancelled(g.name, CancelReasonTeardown)
	}
	n := len(g.units)
	g.units = make(map[string]*liveUnit[R])
	g.metrics.RecordLiveTasks(g.name, 0)
	g.mu.Unlock()

	if n > 0 {
		g.logger.Info("registry closed, live tasks cancelled",
			F("store", g.name), F("count", n))
	}
}

// Live returns the number of currently tracked tasks.
func (g *Registry[S, R]) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.units)
}

// IsLive reports whether a task with the given identity is tracked.
func (g *Registry[S, R]) IsLive(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.units[id]
	return ok
}

// Stats returns a point-in-time snapshot for observability.
func (g *Registry[S, R]) Stats() RegistryStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return RegistryStats{
		Name:      g.name,
		Live:      len(g.units),
		Started:   g.started.Load(),
		Cancelled: g.cancelled.Load(),
		Closed:    g.closed,
	}
}
