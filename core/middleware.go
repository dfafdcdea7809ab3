package core

import (
	"context"
)

// Middleware observes dispatches. Implementations opt into hook points by
// additionally implementing BeforeDispatchHook, AfterDispatchHook, or
// DispatchErrorHook; the chain partitions them once at construction so
// dispatch-time filtering is free.
//
// Hooks are observation only: they run on the store's serial execution
// context, may mutate state, and can never alter control flow or suppress
// the dispatched error. A panicking hook is recovered and logged; its
// siblings still run.
type Middleware interface {
	// MiddlewareID names the middleware for diagnostics. IDs need not be
	// unique.
	MiddlewareID() string
}

// BeforeDispatchHook runs before the handler is invoked.
type BeforeDispatchHook[A, S any] interface {
	Middleware
	BeforeDispatch(ctx context.Context, action A, state *S)
}

// AfterDispatchHook runs after the handler has produced an effect. It
// observes the decision — the produced effect — not the final resolution of
// any asynchronous work the effect describes.
type AfterDispatchHook[A, S, R any] interface {
	Middleware
	AfterDispatch(ctx context.Context, action A, effect Effect[S, R], state *S)
}

// DispatchErrorHook runs when the handler or the interpretation of its
// effect fails.
type DispatchErrorHook[A, S any] interface {
	Middleware
	DispatchError(ctx context.Context, action A, err error, state *S)
}

// MiddlewareFuncs adapts plain functions into a Middleware; nil fields are
// skipped. The zero value is a valid no-op middleware.
type MiddlewareFuncs[A, S, R any] struct {
	Name      string
	OnBefore  func(ctx context.Context, action A, state *S)
	OnAfter   func(ctx context.Context, action A, effect Effect[S, R], state *S)
	OnFailure func(ctx context.Context, action A, err error, state *S)
}

func (m MiddlewareFuncs[A, S, R]) MiddlewareID() string {
	if m.Name == "" {
		return "funcs"
	}
	return m.Name
}

func (m MiddlewareFuncs[A, S, R]) BeforeDispatch(ctx context.Context, action A, state *S) {
	if m.OnBefore != nil {
		m.OnBefore(ctx, action, state)
	}
}

func (m MiddlewareFuncs[A, S, R]) AfterDispatch(ctx context.Context, action A, effect Effect[S, R], state *S) {
	if m.OnAfter != nil {
		m.OnAfter(ctx, action, effect, state)
	}
}

func (m MiddlewareFuncs[A, S, R]) DispatchError(ctx context.Context, action A, err error, state *S) {
	if m.OnFailure != nil {
		m.OnFailure(ctx, action, err, state)
	}
}

// =============================================================================
// middlewareChain: immutable, pre-partitioned hook lists
// =============================================================================

type middlewareChain[A, S, R any] struct {
	all     []Middleware
	before  []BeforeDispatchHook[A, S]
	after   []AfterDispatchHook[A, S, R]
	onError []DispatchErrorHook[A, S]

	logger    Logger
	storeName string
}

func newMiddlewareChain[A, S, R any](storeName string, logger Logger, mws []Middleware) *middlewareChain[A, S, R] {
	c := &middlewareChain[A, S, R]{logger: logger, storeName: storeName}
	for _, mw := range mws {
		c.add(mw)
	}
	return c
}

func (c *middlewareChain[A, S, R]) add(mw Middleware) {
	c.all = append(c.all, mw)
	if h, ok := mw.(BeforeDispatchHook[A, S]); ok {
		c.before = append(c.before, h)
	}
	if h, ok := mw.(AfterDispatchHook[A, S, R]); ok {
		c.after = append(c.after, h)
	}
	if h, ok := mw.(DispatchErrorHook[A, S]); ok {
		c.onError = append(c.onError, h)
	}
}

// extend returns a new chain with mws appended; the receiver is unchanged.
func (c *middlewareChain[A, S, R]) extend(mws ...Middleware) *middlewareChain[A, S, R] {
	next := newMiddlewareChain[A, S, R](c.storeName, c.logger, c.all)
	for _, mw := range mws {
		next.add(mw)
	}
	return next
}

// runBefore invokes pre-dispatch hooks in registration order, each fully
// completed before the next starts.
func (c *middlewareChain[A, S, R]) runBefore(ctx context.Context, action A, state *S) {
	for _, h := range c.before {
		c.invoke(h, "before", func() { h.BeforeDispatch(ctx, action, state) })
	}
}

// runAfter invokes post-dispatch hooks in registration order. Registration
// order, not reverse: these hooks are independent observation, not nested
// call-stack unwinding.
func (c *middlewareChain[A, S, R]) runAfter(ctx context.Context, action A, effect Effect[S, R], state *S) {
	for _, h := range c.after {
		c.invoke(h, "after", func() { h.AfterDispatch(ctx, action, effect, state) })
	}
}

// runError invokes error hooks in registration order. Every registered hook
// runs, even when an earlier one fails for the same error event.
func (c *middlewareChain[A, S, R]) runError(ctx context.Context, action A, err error, state *S) {
	for _, h := range c.onError {
		c.invoke(h, "error", func() { h.DispatchError(ctx, action, err, state) })
	}
}

func (c *middlewareChain[A, S, R]) invoke(mw Middleware, hook string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("middleware panicked",
				F("store", c.storeName),
				F("middleware", mw.MiddlewareID()),
				F("hook", hook),
				F("panic", rec))
		}
	}()
	fn()
}
