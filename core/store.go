package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handler turns a dispatched action into an effect against the current
// state. It runs on the store's serial execution context and may mutate the
// state directly.
type Handler[A, S, R any] func(ctx context.Context, action A, state *S) (Effect[S, R], error)

// storeLife holds the lifecycle and counters shared between a store and its
// WithMiddleware derivatives.
type storeLife struct {
	closed     atomic.Bool
	dispatches atomic.Uint64
	failures   atomic.Uint64
	inFlight   atomic.Int64
}

// Store is the single-owner orchestration engine. It accepts actions, asks
// the handler for an effect, runs the middleware chain around that decision,
// interprets the effect (delegating tasks to the registry), and resolves an
// independent handle per dispatch.
//
// All handler, middleware, and state-mutating work runs on one serial
// execution context; per-dispatch bookkeeping and asynchronous tasks run on
// their own goroutines.
type Store[A, S, R any] struct {
	name     string
	exec     *serialExecutor
	state    *S
	stateRef *StateRef[S]
	registry *Registry[S, R]
	handler  Handler[A, S, R]
	chain    *middlewareChain[A, S, R]
	logger   Logger
	metrics  Metrics
	life     *storeLife
}

// StoreOption configures a store at construction.
type StoreOption func(*storeOptions)

type storeOptions struct {
	name        string
	logger      Logger
	metrics     Metrics
	middlewares []Middleware
}

// WithName sets the store name used in logs and metrics labels.
func WithName(name string) StoreOption {
	return func(o *storeOptions) { o.name = name }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink; the default is a no-op.
func WithMetrics(metrics Metrics) StoreOption {
	return func(o *storeOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithMiddleware appends middlewares to the chain, in order.
func WithMiddleware(mws ...Middleware) StoreOption {
	return func(o *storeOptions) { o.middlewares = append(o.middlewares, mws...) }
}

// NewStore creates a store around externally owned state and a handler. The
// state stays owned by the caller; the store only guarantees that its own
// accesses to it are serialized.
func NewStore[A, S, R any](state *S, handler Handler[A, S, R], opts ...StoreOption) *Store[A, S, R] {
	o := storeOptions{
		name:    "store",
		logger:  NewNoOpLogger(),
		metrics: &NilMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	exec := newSerialExecutor(o.name, o.logger)
	stateRef := &StateRef[S]{exec: exec, state: state}

	return &Store[A, S, R]{
		name:     o.name,
		exec:     exec,
		state:    state,
		stateRef: stateRef,
		registry: newRegistry[S, R](o.name, stateRef, o.logger, o.metrics),
		handler:  handler,
		chain:    newMiddlewareChain[A, S, R](o.name, o.logger, o.middlewares),
		logger:   o.logger,
		metrics:  o.metrics,
		life:     &storeLife{},
	}
}

// WithMiddleware returns a derived store with an extended middleware chain.
// The derived store shares the engine — state, registry, serial context,
// lifecycle — with the receiver; only the chain differs. The receiver's
// chain is unchanged.
func (s *Store[A, S, R]) WithMiddleware(mws ...Middleware) *Store[A, S, R] {
	derived := *s
	derived.chain = s.chain.extend(mws...)
	return &derived
}

// Dispatch submits one action and returns an independent handle for its
// outcome. The handle always resolves: with the outcome, with the error
// that failed the dispatch, with ErrCancelled if ctx is cancelled
// mid-interpretation, or with ErrStoreClosed if the store is torn down.
//
// Dispatches that are individually awaited are fully serialized relative to
// each other. Dispatches issued without awaiting have no relative ordering
// guarantee; the runtime scheduler may interleave them freely. Only
// per-identity single-flight holds regardless.
func (s *Store[A, S, R]) Dispatch(ctx context.Context, action A) *Handle[R] {
	handle := newHandle[R]()

	if s.life.closed.Load() {
		handle.fail(ErrStoreClosed)
		return handle
	}

	s.life.dispatches.Add(1)
	s.life.inFlight.Add(1)

	go s.run(ctx, uuid.NewString(), action, handle)

	return handle
}

func (s *Store[A, S, R]) run(ctx context.Context, dispatchID string, action A, handle *Handle[R]) {
	defer s.life.inFlight.Add(-1)
	start := time.Now()
	var zero R

	// Cancellation short-circuits: an already-cancelled dispatch never
	// reaches the handler.
	if ctx.Err() != nil {
		s.settle(ctx, dispatchID, action, handle, zero, ErrCancelled, start)
		return
	}

	s.logger.Debug("dispatch accepted",
		F("store", s.name), F("dispatch", dispatchID), F("action", action))

	// Phase 1, on the serial context: pre-hooks, handler, post-hooks.
	var (
		eff  Effect[S, R]
		herr error
	)
	if err := s.exec.postAndWait(ctx, func() {
		s.chain.runBefore(ctx, action, s.state)
		eff, herr = s.invokeHandler(ctx, action)
		if herr == nil {
			s.chain.runAfter(ctx, action, eff, s.state)
		}
	}); err != nil {
		s.settle(ctx, dispatchID, action, handle, zero, normalizeErr(err), start)
		return
	}
	if herr != nil {
		s.settle(ctx, dispatchID, action, handle, zero, herr, start)
		return
	}

	// Phase 2, off the serial context: interpret the effect.
	out, err := s.interpret(ctx, eff)
	s.settle(ctx, dispatchID, action, handle, out, err, start)
}

func (s *Store[A, S, R]) invokeHandler(ctx context.Context, action A) (eff Effect[S, R], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = PanicError{Value: rec}
			s.metrics.RecordTaskPanic(s.name, rec)
			s.logger.Error("handler panicked",
				F("store", s.name), F("action", action), F("panic", rec))
		}
	}()
	return s.handler(ctx, action, s.state)
}

// interpret executes the flattened effect sequence strictly in declared
// order, checking for cancellation at every step boundary. The last step's
// value becomes the outcome of the whole sequence.
func (s *Store[A, S, R]) interpret(ctx context.Context, eff Effect[S, R]) (R, error) {
	var out, zero R

	for _, step := range eff.flatten() {
		if err := ctx.Err(); err != nil {
			return zero, ErrCancelled
		}

		switch step.kind {
		case effectImmediate:
			out = step.value

		case effectTask:
			result, err := s.registry.Run(ctx, step).Await(ctx)
			if err != nil {
				if isCancellation(err) {
					err = ErrCancelled
				}
				return zero, err
			}
			out = result

		case effectCancel:
			// Fire and forget: the cancelled tasks stop in their own
			// time, this step's value returns right away.
			s.registry.Cancel(step.cancelIDs...)
			out = step.value
		}
	}

	return out, nil
}

// settle resolves the handle, runs error hooks on failures, and records the
// dispatch. Error hooks run on the serial context with a background wait so
// they still execute when the dispatch ctx is already cancelled.
func (s *Store[A, S, R]) settle(ctx context.Context, dispatchID string, action A, handle *Handle[R], out R, err error, start time.Time) {
	status := StatusSuccess
	if err != nil {
		if isCancellation(err) {
			status = StatusCancelled
		} else {
			status = StatusFailure
		}
		s.life.failures.Add(1)

		if hookErr := s.exec.postAndWait(context.Background(), func() {
			s.chain.runError(ctx, action, err, s.state)
		}); hookErr != nil {
			s.logger.Debug("error hooks skipped",
				F("store", s.name), F("dispatch", dispatchID), F("error", hookErr))
		}

		handle.fail(err)
	} else {
		handle.resolve(out, nil)
	}

	s.metrics.RecordDispatchDuration(s.name, status, time.Since(start))
	s.logger.Debug("dispatch resolved",
		F("store", s.name),
		F("dispatch", dispatchID),
		F("status", status),
		F("duration", time.Since(start)))
}

// normalizeErr maps engine-internal wait failures onto the public taxonomy.
func normalizeErr(err error) error {
	if isCancellation(err) {
		return ErrCancelled
	}
	return err
}

// Registry exposes the task registry, mainly for observability adapters.
func (s *Store[A, S, R]) Registry() *Registry[S, R] {
	return s.registry
}

// Name returns the store name.
func (s *Store[A, S, R]) Name() string {
	return s.name
}

// Stats returns a point-in-time snapshot for observability.
func (s *Store[A, S, R]) Stats() StoreStats {
	return StoreStats{
		Name:       s.name,
		Dispatches: s.life.dispatches.Load(),
		Failures:   s.life.failures.Load(),
		InFlight:   int(s.life.inFlight.Load()),
		Closed:     s.life.closed.Load(),
	}
}

// IsClosed reports whether Close has been called.
func (s *Store[A, S, R]) IsClosed() bool {
	return s.life.closed.Load()
}

// Close tears the store down: every live task is cancelled, in-flight
// dispatches resolve with ErrCancelled or ErrStoreClosed, and subsequent
// dispatches fail with ErrStoreClosed. Close must not be called from a
// handler or middleware hook; it waits for the serial context to stop.
func (s *Store[A, S, R]) Close() {
	if !s.life.closed.CompareAndSwap(false, true) {
		return
	}

	s.registry.Close()
	s.exec.stop()

	s.logger.Info("store closed", F("store", s.name))
}
