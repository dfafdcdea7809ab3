package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// serialExecutor binds a dedicated goroutine to execute closures strictly in
// submission order. It is the store's single logical execution context: every
// handler invocation, middleware hook, error handler, and state mutation runs
// here, so none of them ever interleave.
type serialExecutor struct {
	workQueue chan func()

	ctx    context.Context
	cancel context.CancelFunc

	stopped chan struct{}
	once    sync.Once
	closed  atomic.Bool

	logger Logger
	name   string
}

func newSerialExecutor(name string, logger Logger) *serialExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &serialExecutor{
		workQueue: make(chan func(), 128), // buffered so posters rarely block
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		logger:    logger,
		name:      name,
	}

	go e.runLoop()

	return e
}

// post submits fn for sequential execution. Returns ErrStoreClosed after the
// executor has been stopped.
func (e *serialExecutor) post(fn func()) error {
	if e.closed.Load() {
		return ErrStoreClosed
	}

	select {
	case <-e.ctx.Done():
		return ErrStoreClosed
	case e.workQueue <- fn:
		return nil
	}
}

// postAndWait submits fn and blocks until it has run. The wait also ends if
// ctx is cancelled or the executor stops; fn may still run afterwards in the
// former case, but the caller no longer observes it.
func (e *serialExecutor) postAndWait(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := e.post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-e.ctx.Done():
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop terminates the run loop. Tasks already executing finish; queued tasks
// are dropped. Safe to call more than once.
func (e *serialExecutor) stop() {
	e.once.Do(func() {
		e.closed.Store(true)
		e.cancel()
		<-e.stopped
	})
}

func (e *serialExecutor) isClosed() bool {
	return e.closed.Load()
}

// runLoop occupies the dedicated goroutine for the executor's lifetime.
func (e *serialExecutor) runLoop() {
	defer close(e.stopped)

	for {
		select {
		case fn := <-e.workQueue:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						e.logger.Error("panic on serial executor",
							F("executor", e.name),
							F("panic", rec))
					}
				}()
				fn()
			}()

		case <-e.ctx.Done():
			return
		}
	}
}
