package fluxion

import (
	"context"

	"github.com/soracane/fluxion/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the fluxion package for most use cases.

// Effect describes work for the store to perform.
type Effect[S, R any] = core.Effect[S, R]

// Operation is the unit of asynchronous work inside a task effect.
type Operation[S, R any] = core.Operation[S, R]

// ErrorHandler mutates state in response to a failed task.
type ErrorHandler[S any] = core.ErrorHandler[S]

// Handler turns a dispatched action into an effect.
type Handler[A, S, R any] = core.Handler[A, S, R]

// Store is the orchestration engine.
type Store[A, S, R any] = core.Store[A, S, R]

// Handle is the resolve-once promise returned by Dispatch.
type Handle[R any] = core.Handle[R]

// StateRef is the capability async operations use to touch state.
type StateRef[S any] = core.StateRef[S]

// Middleware observes dispatches; see core for the hook interfaces.
type Middleware = core.Middleware

// MiddlewareFuncs adapts plain functions into a Middleware.
type MiddlewareFuncs[A, S, R any] = core.MiddlewareFuncs[A, S, R]

// Priority levels carried by task effects.
type Priority = core.Priority

const (
	PriorityBestEffort   Priority = core.PriorityBestEffort
	PriorityUserVisible  Priority = core.PriorityUserVisible
	PriorityUserBlocking Priority = core.PriorityUserBlocking
)

// Sentinel errors surfaced by dispatch handles.
var (
	ErrStoreClosed = core.ErrStoreClosed
	ErrCancelled   = core.ErrCancelled
	ErrNoEffects   = core.ErrNoEffects
)

// Store options.
var (
	WithName       = core.WithName
	WithLogger     = core.WithLogger
	WithMetrics    = core.WithMetrics
	WithMiddleware = core.WithMiddleware
)

// NewStore creates a store around externally owned state and a handler.
func NewStore[A, S, R any](state *S, handler Handler[A, S, R], opts ...core.StoreOption) *Store[A, S, R] {
	return core.NewStore(state, handler, opts...)
}

// Immediate returns an effect that completes synchronously with value.
func Immediate[S, R any](value R) Effect[S, R] {
	return core.Immediate[S, R](value)
}

// None returns the identity effect for Concat.
func None[S, R any]() Effect[S, R] {
	return core.None[S, R]()
}

// Task returns an effect describing asynchronous work.
func Task[S, R any](op Operation[S, R]) Effect[S, R] {
	return core.Task(op)
}

// CancelTasks returns an effect cancelling the identified live tasks and
// completing immediately with value.
func CancelTasks[S, R any](value R, ids ...string) Effect[S, R] {
	return core.CancelTasks[S, R](value, ids...)
}

// Concat sequences effects strictly in order; Concat of zero effects
// returns ErrNoEffects.
func Concat[S, R any](effects ...Effect[S, R]) (Effect[S, R], error) {
	return core.Concat(effects...)
}

// Dispatch is shorthand for dispatching and awaiting in one call.
func Dispatch[A, S, R any](ctx context.Context, store *Store[A, S, R], action A) (R, error) {
	return store.Dispatch(ctx, action).Await(ctx)
}
