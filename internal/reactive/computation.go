package reactive

import (
	"log/slog"
)

// Result is the published state of a computation binding.
type Result[T any] struct {
	Ready bool `json:"ready"`
	Value T    `json:"value"`
}

// ComputationConfig tunes a computation binding.
type ComputationConfig[T any] struct {
	// Default is published when the source is null or the computation
	// fails.
	Default T

	// OnAbort runs when a still-pending future is superseded or the
	// binding is disposed. Defaults to Future.Cancel.
	OnAbort func(*Future[T])
}

// ComputationBinding publishes the outcome of the future resolved by its
// source. Futures are compared by identity.
type ComputationBinding[T any] struct {
	*binding[*Future[T]]
	value   *Value[Result[T]]
	cfg     ComputationConfig[T]
	pending *Future[T]
}

// ObserveComputation awaits the future resolved by src and publishes its
// result. A failure publishes cfg.Default and is also sent to the error
// handler. A future superseded before it settles never publishes.
func ObserveComputation[T any](rt *Runtime, src Source[*Future[T]], cfg ComputationConfig[T], opts ...Option) *ComputationBinding[T] {
	s := newSettings("computation", opts)
	if cfg.OnAbort == nil {
		cfg.OnAbort = func(f *Future[T]) { f.Cancel() }
	}
	c := &ComputationBinding[T]{
		value: NewValue(Result[T]{}),
		cfg:   cfg,
	}
	c.binding = newBinding(rt, s, src, Identity[*Future[T]])
	c.open = c.await
	c.empty = func() { c.value.set(Result[T]{Ready: true, Value: c.cfg.Default}) }
	c.reset = func() { c.value.set(Result[T]{}) }
	c.start(s.deps)
	return c
}

// Value returns the published result.
func (c *ComputationBinding[T]) Value() *Value[Result[T]] {
	return c.value
}

// Get returns the current result.
func (c *ComputationBinding[T]) Get() Result[T] {
	return c.value.Get()
}

func (c *ComputationBinding[T]) await(f *Future[T], gen int64) func() {
	if cur := c.value.Get(); cur.Ready {
		c.value.set(Result[T]{})
	}
	c.pending = f
	slog.Debug("awaiting computation", "binding", c.name, "generation", gen)

	stop := make(chan struct{})
	c.rt.Go(func() {
		select {
		case <-f.Done():
			c.rt.Post(func() { c.settle(gen, f) })
		case <-stop:
		}
	})

	return func() {
		if c.pending != nil && c.pending != f {
			panic(&MisuseError{Binding: c.name, Message: "teardown for a computation that is not pending"})
		}
		if c.pending == f {
			slog.Debug("aborting computation", "binding", c.name, "generation", gen)
			c.cfg.OnAbort(f)
			c.pending = nil
		}
		close(stop)
	}
}

func (c *ComputationBinding[T]) settle(gen int64, f *Future[T]) {
	if !c.live(gen) {
		slog.Debug("discarded stale computation", "binding", c.name, "generation", gen)
		return
	}
	if c.pending != f {
		panic(&MisuseError{Binding: c.name, Message: "live computation settled but is not pending"})
	}
	c.pending = nil

	v, err := f.Result()
	if err != nil {
		slog.Debug("computation rejected", "binding", c.name, "error", err)
		c.value.set(Result[T]{Ready: true, Value: c.cfg.Default})
		c.fail(err)
		return
	}
	slog.Debug("computation resolved", "binding", c.name)
	c.value.set(Result[T]{Ready: true, Value: v})
}
