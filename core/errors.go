package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed indicates the store (or its registry) was closed before
	// the operation could complete. In-flight dispatches resolve with this
	// error instead of hanging.
	ErrStoreClosed = errors.New("fluxion: store is closed")

	// ErrCancelled indicates a task was cancelled, either explicitly by
	// identity or because the caller's context was cancelled mid-dispatch.
	ErrCancelled = errors.New("fluxion: cancelled")

	// ErrNoEffects indicates Concat was called with zero effects.
	// An empty sequence is almost always a caller bug (empty filter/map
	// result), so it fails at construction time rather than degrading to a
	// silent no-op.
	ErrNoEffects = errors.New("fluxion: no effects to execute")
)

// PanicError wraps a panic recovered from a task operation or handler.
type PanicError struct {
	TaskID string
	Value  any
}

func (e PanicError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("fluxion: panic: %v", e.Value)
	}
	return fmt.Sprintf("fluxion: panic in task %s: %v", e.TaskID, e.Value)
}

// isCancellation reports whether err represents a cancellation rather than
// a domain failure.
func isCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
