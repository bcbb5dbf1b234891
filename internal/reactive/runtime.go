package reactive

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Runtime is the single logical thread that every binding runs on.
//
// Tasks are executed one at a time in FIFO order, either by Run (one
// long-lived goroutine) or by Drain/Settle (synchronously, for tests and
// short-lived commands). Never mix the two: Drain panics while Run is
// active.
//
// Thread-safety model:
//   - Post(), Go(), Stop(): safe from any goroutine
//   - Run(), Drain(), Settle(): exactly one caller at a time
type Runtime struct {
	queue   *taskQueue
	running atomic.Bool

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // closed while inflight == 0

	// finals run on the Run goroutine once it has executed its last task.
	finalMu sync.Mutex
	finals  []func()
}

// NewRuntime creates an idle runtime.
func NewRuntime() *Runtime {
	idle := make(chan struct{})
	close(idle)
	return &Runtime{
		queue: newTaskQueue(),
		idle:  idle,
	}
}

// Post schedules fn to run on the runtime goroutine.
// Returns false if the runtime has been stopped.
func (r *Runtime) Post(fn func()) bool {
	return r.queue.Enqueue(fn)
}

// Go runs fn on a new goroutine and tracks it until it returns.
// Settle waits for tracked work; use Go for provider writes and waiters
// whose completion posts back to the runtime.
func (r *Runtime) Go(fn func()) {
	r.mu.Lock()
	if r.inflight == 0 {
		r.idle = make(chan struct{})
	}
	r.inflight++
	r.mu.Unlock()

	go func() {
		defer r.done()
		fn()
	}()
}

func (r *Runtime) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if r.inflight == 0 {
		close(r.idle)
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		panic(&MisuseError{Message: "Runtime.Run called twice"})
	}
	defer r.finish()

	slog.Debug("runtime starting")

	for {
		if fn, ok := r.queue.TryDequeue(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("runtime stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel is closed once the queue is closed,
			// so an empty closed queue ends the loop here.
			if r.queue.Closed() && r.queue.Len() == 0 {
				slog.Debug("runtime stopping: queue closed")
				return nil
			}
		}
	}
}

func (r *Runtime) finish() {
	r.finalMu.Lock()
	r.running.Store(false)
	finals := r.finals
	r.finals = nil
	r.finalMu.Unlock()

	for _, fn := range finals {
		fn()
	}
}

// postFinal runs fn on the runtime like Post. After Stop it runs fn once
// no task can run anymore: when Run returns, or right away on the caller's
// goroutine if Run is not active.
func (r *Runtime) postFinal(fn func()) {
	if r.Post(fn) {
		return
	}
	r.finalMu.Lock()
	if r.running.Load() {
		r.finals = append(r.finals, fn)
		r.finalMu.Unlock()
		return
	}
	r.finalMu.Unlock()
	fn()
}

// Drain runs queued tasks synchronously until the queue is empty,
// including tasks posted by the tasks themselves.
// Returns the number of tasks executed.
func (r *Runtime) Drain() int {
	if r.running.Load() {
		panic(&MisuseError{Message: "Runtime.Drain called while Run is active"})
	}
	n := 0
	for {
		fn, ok := r.queue.TryDequeue()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Flusher is an external source of runtime tasks, such as a provider's
// notification queue. Flush blocks until work queued before the call has
// been delivered and reports how many items it delivered.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Settle drains the queue and waits for background work started with Go
// until both are quiet, or ctx is done. Each external Flusher is flushed
// after every round; Settle returns once a round delivers nothing new.
func (r *Runtime) Settle(ctx context.Context, external ...Flusher) error {
	for {
		if err := r.settleLocal(ctx); err != nil {
			return err
		}

		delivered := 0
		for _, f := range external {
			n, err := f.Flush(ctx)
			if err != nil {
				return err
			}
			delivered += n
		}
		if delivered == 0 && r.queue.Len() == 0 {
			return nil
		}
	}
}

func (r *Runtime) settleLocal(ctx context.Context) error {
	for {
		r.Drain()

		r.mu.Lock()
		inflight, idle := r.inflight, r.idle
		r.mu.Unlock()

		if inflight == 0 {
			if r.queue.Len() == 0 {
				return nil
			}
			continue
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of queued tasks.
func (r *Runtime) Pending() int {
	return r.queue.Len()
}

// Stop closes the task queue. Run returns once the remaining tasks ran.
// Bindings disposed after Stop tear down when Run returns.
func (r *Runtime) Stop() {
	r.queue.Close()
}
