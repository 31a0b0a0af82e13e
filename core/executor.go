package core

import (
	"context"
	"fmt"
	"sync"
)

// SerialExecutor runs posted work one item at a time, in post order, on a
// single goroutine. It plays the role of the UI thread: controller state is
// only ever touched from inside posted work.
type SerialExecutor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	done    chan struct{}
	onPanic func(recovered any)
}

func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// OnPanic installs a hook for panics raised by posted work. The executor keeps
// running after a panic.
func (e *SerialExecutor) OnPanic(hook func(recovered any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPanic = hook
}

func (e *SerialExecutor) Post(fn func()) bool {
	if e == nil || fn == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, fn)
	e.cond.Signal()
	return true
}

// Do posts fn and waits for it to run. It must not be called from work that
// is itself running on the executor.
func (e *SerialExecutor) Do(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	finished := make(chan struct{})
	if !e.Post(func() {
		defer close(finished)
		fn()
	}) {
		return fmt.Errorf("core: executor is closed")
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, drains what is already queued, and waits for
// the executor goroutine to exit.
func (e *SerialExecutor) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	<-e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		hook := e.onPanic
		e.mu.Unlock()

		e.invoke(fn, hook)
	}
}

func (e *SerialExecutor) invoke(fn func(), hook func(any)) {
	defer func() {
		if recovered := recover(); recovered != nil && hook != nil {
			hook(recovered)
		}
	}()
	fn()
}
