package reactive

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Future is a cancellable one-shot computation. It starts when created and
// settles exactly once.
type Future[T any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	settled atomic.Bool
	value   T
	err     error
}

// Async starts fn on its own goroutine. fn receives a context that is
// cancelled by Cancel or when the parent is done.
func Async[T any](parent context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(parent)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		var (
			v   T
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("computation panicked: %v", r)
				}
			}()
			v, err = fn(ctx)
		}()
		f.settle(v, err)
	}()
	return f
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}}
	f.settle(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}}
	var zero T
	f.settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.value, f.err = v, err
	f.settled.Store(true)
	close(f.done)
}

// Done is closed once the future settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result.
func (f *Future[T]) Settled() bool {
	return f.settled.Load()
}

// Result blocks until the future settles.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the result or for ctx.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel cancels the computation's context. Whether the work actually
// stops is up to fn.
func (f *Future[T]) Cancel() {
	f.cancel()
}
