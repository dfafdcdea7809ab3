package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Operation is the unit of asynchronous work. It runs on its own goroutine,
// receives the store's state handle, and returns the task's outcome.
// Implementations should honor ctx cancellation at their own suspension
// points.
type Operation[S, R any] func(ctx context.Context, state *StateRef[S]) (R, error)

// ErrorHandler mutates state in response to a failed task. It runs on the
// store's serial execution context. It is a side channel only: the error
// still propagates to whoever awaits the dispatch.
type ErrorHandler[S any] func(err error, state *S)

// =============================================================================
// Priority: task attributes carried for observability
// =============================================================================

type Priority int

const (
	// PriorityBestEffort: lowest priority, background work.
	PriorityBestEffort Priority = iota

	// PriorityUserVisible: default priority.
	PriorityUserVisible

	// PriorityUserBlocking: highest priority.
	// The user is actively waiting on this task's outcome.
	PriorityUserBlocking
)

func (p Priority) String() string {
	switch p {
	case PriorityBestEffort:
		return "best_effort"
	case PriorityUserVisible:
		return "user_visible"
	case PriorityUserBlocking:
		return "user_blocking"
	default:
		return "unknown"
	}
}

// =============================================================================
// Effect: immutable description of work to perform
// =============================================================================

type effectKind uint8

const (
	effectImmediate effectKind = iota
	effectTask
	effectCancel
	effectConcat
)

// Effect describes work the store should perform for a dispatched action:
// an immediate value, an identified asynchronous task, a cancellation
// request, or a sequence of effects. Effects are immutable values; every
// With* method returns a reconfigured copy.
//
// S is the externally owned state type, R the outcome type.
type Effect[S, R any] struct {
	kind effectKind

	// effectImmediate / effectCancel
	value    R
	identity bool // true for None(): the concat identity element

	// effectTask
	id             string
	name           string
	op             Operation[S, R]
	onError        ErrorHandler[S]
	cancelInFlight bool
	priority       Priority

	// effectCancel
	cancelIDs []string

	// effectConcat
	left  *Effect[S, R]
	right *Effect[S, R]
}

// taskSeq generates process-wide unique identities for tasks that were not
// given one explicitly. There is no reset; the counter lives as long as the
// process.
var taskSeq atomic.Uint64

func nextTaskID() string {
	return fmt.Sprintf("task-%d", taskSeq.Add(1))
}

// Immediate returns an effect that completes synchronously with value.
func Immediate[S, R any](value R) Effect[S, R] {
	return Effect[S, R]{kind: effectImmediate, value: value}
}

// None returns the identity effect: it completes with the zero outcome and
// collapses away when concatenated with any other effect.
func None[S, R any]() Effect[S, R] {
	return Effect[S, R]{kind: effectImmediate, identity: true}
}

// Task returns an effect describing asynchronous work. The task is given an
// auto-generated identity; use CancellableAs to pin a caller-chosen one.
func Task[S, R any](op Operation[S, R]) Effect[S, R] {
	return Effect[S, R]{
		kind:     effectTask,
		id:       nextTaskID(),
		op:       op,
		priority: PriorityUserVisible,
	}
}

// CancelTasks returns an effect that cancels the identified live tasks and
// immediately completes with value. Unknown identities are ignored.
func CancelTasks[S, R any](value R, ids ...string) Effect[S, R] {
	return Effect[S, R]{kind: effectCancel, value: value, cancelIDs: ids}
}

// Concat composes effects into a sequence executed strictly in order; the
// last element's outcome becomes the outcome of the whole. Identity effects
// (None) collapse away. Concat of zero effects returns ErrNoEffects: an
// empty sequence is a caller bug, not a no-op.
func Concat[S, R any](effects ...Effect[S, R]) (Effect[S, R], error) {
	if len(effects) == 0 {
		var zero Effect[S, R]
		return zero, ErrNoEffects
	}

	acc := effects[0]
	for _, e := range effects[1:] {
		acc = concatPair(acc, e)
	}
	return acc, nil
}

// concatPair joins two effects, collapsing the identity element on either
// side so that None never adds a runtime step.
func concatPair[S, R any](left, right Effect[S, R]) Effect[S, R] {
	if left.isIdentity() {
		return right
	}
	if right.isIdentity() {
		return left
	}
	l, r := left, right
	return Effect[S, R]{kind: effectConcat, left: &l, right: &r}
}

func (e Effect[S, R]) isIdentity() bool {
	return e.kind == effectImmediate && e.identity
}

// =============================================================================
// Fluent reconfiguration (copy-on-write)
// =============================================================================

// WithID returns a copy of the effect with a caller-chosen task identity.
// Only meaningful on task effects; other kinds are returned unchanged.
func (e Effect[S, R]) WithID(id string) Effect[S, R] {
	if e.kind != effectTask {
		return e
	}
	e.id = id
	return e
}

// CancellableAs returns a copy with a caller-chosen identity. When
// cancelInFlight is true, starting this task is expected to replace any
// live task under the same identity; when false, a collision is treated as
// a caller mistake and logged accordingly (the registry cancels the
// predecessor either way, as a safety net).
func (e Effect[S, R]) CancellableAs(id string, cancelInFlight bool) Effect[S, R] {
	if e.kind != effectTask {
		return e
	}
	e.id = id
	e.cancelInFlight = cancelInFlight
	return e
}

// WithName returns a copy carrying a diagnostic name for logs and metrics.
func (e Effect[S, R]) WithName(name string) Effect[S, R] {
	if e.kind != effectTask {
		return e
	}
	e.name = name
	return e
}

// WithErrorHandler returns a copy that mutates state through handler when
// the task fails. The error still propagates to the dispatch handle.
func (e Effect[S, R]) WithErrorHandler(handler ErrorHandler[S]) Effect[S, R] {
	if e.kind != effectTask {
		return e
	}
	e.onError = handler
	return e
}

// WithPriority returns a copy carrying the given priority.
func (e Effect[S, R]) WithPriority(p Priority) Effect[S, R] {
	if e.kind != effectTask {
		return e
	}
	e.priority = p
	return e
}

// ID returns the task identity, or "" for non-task effects.
func (e Effect[S, R]) ID() string { return e.id }

// Name returns the diagnostic name, or "" if none was set.
func (e Effect[S, R]) Name() string { return e.name }

// Priority returns the task priority; meaningful only for task effects.
func (e Effect[S, R]) Priority() Priority { return e.priority }

// String renders a compact description for logs.
func (e Effect[S, R]) String() string {
	switch e.kind {
	case effectImmediate:
		if e.identity {
			return "none"
		}
		return "immediate"
	case effectTask:
		if e.name != "" {
			return fmt.Sprintf("task(%s %q)", e.id, e.name)
		}
		return fmt.Sprintf("task(%s)", e.id)
	case effectCancel:
		return fmt.Sprintf("cancel(%s)", strings.Join(e.cancelIDs, ","))
	case effectConcat:
		return fmt.Sprintf("concat(%d)", len(e.flatten()))
	default:
		return "unknown"
	}
}

// =============================================================================
// Flattening
// =============================================================================

// flatten reduces a (possibly deeply nested) concat tree into a linear
// sequence of leaf effects in execution order. It iterates with its own
// stack so that chains hundreds of levels deep never touch the goroutine
// stack; the tree shape is a construction-time convenience only.
func (e Effect[S, R]) flatten() []Effect[S, R] {
	if e.kind != effectConcat {
		return []Effect[S, R]{e}
	}

	var out []Effect[S, R]
	stack := []*Effect[S, R]{&e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.kind == effectConcat {
			// Right pushed first so the left subtree pops (and runs) first.
			stack = append(stack, n.right, n.left)
			continue
		}
		out = append(out, *n)
	}
	return out
}
