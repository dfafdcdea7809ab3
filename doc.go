// Package fluxion provides a single-owner asynchronous task orchestration
// engine for Go.
//
// A Store accepts actions one at a time, asks a caller-supplied handler to
// turn each action into an Effect against the current state, interprets that
// effect, and resolves a handle with the typed outcome. Effects are an
// immutable algebra: an immediate value, an identified asynchronous task, a
// cancellation request, or a sequence of effects.
//
// # Quick Start
//
//	type State struct{ Count int }
//
//	store := fluxion.NewStore(&state,
//		func(ctx context.Context, action string, s *State) (fluxion.Effect[State, int], error) {
//			s.Count++
//			return fluxion.Immediate[State, int](s.Count), nil
//		})
//	defer store.Close()
//
//	n, err := store.Dispatch(ctx, "increment").Await(ctx)
//
// # Key Concepts
//
// Single logical execution context: the handler, all middleware hooks, and
// every state mutation run strictly serialized on one dedicated goroutine,
// so state owned by the store's caller needs no locks against the engine.
//
// Task identity and single-flight: every asynchronous task carries a string
// identity. At most one live task exists per identity; starting a task under
// a busy identity cancels the previous one. Cancellation targets identities:
//
//	fluxion.Task(search).CancellableAs("search", true)
//	fluxion.CancelTasks[State, Outcome](outcome, "search")
//
// Composition: Concat sequences effects strictly in order; the last
// element's outcome wins, and None is the identity element that collapses
// away. Deep chains are flattened before execution, so sequencing hundreds
// of effects is stack-safe.
//
// # Ordering
//
// Dispatches that are individually awaited are fully serialized. Dispatches
// issued without awaiting carry no relative ordering guarantee; only
// per-identity single-flight holds regardless of dispatch order.
//
// # Observability
//
// Stores accept a structured Logger, a Metrics sink, and an ordered chain of
// middleware with before/after/error hooks. Middleware is observation only:
// hooks run in registration order, survive each other's panics, and can
// never swallow the dispatched error. Prometheus adapters live in
// observability/prometheus.
package fluxion
