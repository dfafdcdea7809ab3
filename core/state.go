package core

import "context"

// StateRef is the capability handed to asynchronous operations for touching
// the externally owned state. All access goes through the store's serial
// execution context, so operations running on arbitrary goroutines never
// race with handlers or middleware.
//
// Ownership of the underlying state stays with the store's caller; the
// engine never copies it and never retains it past the store's lifetime.
type StateRef[S any] struct {
	exec  *serialExecutor
	state *S
}

// Update runs fn with mutable access to the state on the serial execution
// context and waits for it to complete. Returns ErrStoreClosed if the store
// has been torn down, or the ctx error if the wait is abandoned.
func (r *StateRef[S]) Update(ctx context.Context, fn func(*S)) error {
	return r.exec.postAndWait(ctx, func() {
		fn(r.state)
	})
}

// View runs fn with read access to the state on the serial execution
// context and waits for it to complete. The engine does not distinguish
// readers from writers; View exists to make call sites self-describing.
func (r *StateRef[S]) View(ctx context.Context, fn func(S)) error {
	return r.exec.postAndWait(ctx, func() {
		fn(*r.state)
	})
}
