package core

import (
	"context"
	"sync"
)

// Handle is a resolve-once promise for a dispatched action's outcome. Each
// dispatch returns its own independent handle; the store never retains it.
type Handle[R any] struct {
	done chan struct{}
	once sync.Once

	result R
	err    error
}

func newHandle[R any]() *Handle[R] {
	return &Handle[R]{done: make(chan struct{})}
}

// Await blocks until the handle resolves or ctx is cancelled. On ctx
// cancellation it returns the zero outcome and the ctx error; the dispatch
// keeps running and resolves the handle regardless.
func (h *Handle[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the handle has resolved.
func (h *Handle[R]) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome after Done is closed. Before resolution it
// returns zero values.
func (h *Handle[R]) Result() (R, error) {
	select {
	case <-h.done:
		return h.result, h.err
	default:
		var zero R
		return zero, nil
	}
}

// resolve sets the outcome exactly once; later calls are ignored, which is
// what makes "complete vs cancelled" races benign.
func (h *Handle[R]) resolve(result R, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}

func (h *Handle[R]) fail(err error) {
	var zero R
	h.resolve(zero, err)
}
