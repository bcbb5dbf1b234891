package reactive

import (
	"log/slog"
	"sync/atomic"
)

// binding implements generation-guarded resubscription for one descriptor
// kind. The typed adapters (auth, document, query, computation) supply
// open/empty/reset and publish into their own Value.
//
// INVARIANTS:
//   - at most one subscription (teardown != nil) is current
//   - every superseded subscription's teardown runs exactly once
//   - a callback publishes only while live(gen) holds
type binding[D any] struct {
	rt     *Runtime
	name   string
	source Source[D]
	equal  Equal[D]

	// open subscribes to d and returns its teardown. Callbacks must go
	// through deliver(gen, ...).
	open func(d D, gen int64) func()
	// empty publishes the value for the null descriptor.
	empty func()
	// reset publishes the value after disposal.
	reset func()

	onError func(error)

	gen       Clock
	evaluated bool
	current   D
	present   bool // current is non-null
	teardown  func()

	closed   atomic.Bool // set by Dispose, read from any goroutine
	disposed bool        // runtime goroutine only
	deps     []Disposable
}

func newBinding[D any](rt *Runtime, s settings, source Source[D], equal Equal[D]) *binding[D] {
	if source == nil {
		source = Null[D]()
	}
	return &binding[D]{
		rt:      rt,
		name:    s.name,
		source:  source,
		equal:   equal,
		onError: s.onError,
	}
}

// start wires dependencies and schedules the first evaluation.
func (b *binding[D]) start(deps []Observable) {
	for _, dep := range deps {
		b.deps = append(b.deps, dep.OnChange(b.Refresh))
	}
	b.Refresh()
}

// Refresh schedules a re-evaluation of the source.
// Safe from any goroutine.
func (b *binding[D]) Refresh() {
	b.rt.Post(b.evaluate)
}

// Generation returns the current generation token.
func (b *binding[D]) Generation() int64 {
	return b.gen.Current()
}

// Dispose tears down the current subscription and publishes the reset
// value. No publication from an earlier subscription happens after
// Dispose returns.
func (b *binding[D]) Dispose() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.rt.postFinal(b.dispose)
}

func (b *binding[D]) evaluate() {
	if b.disposed || b.closed.Load() {
		return
	}

	next, ok := b.source()
	if b.evaluated && b.sameDescriptor(next, ok) {
		return
	}

	b.teardownCurrent()
	gen := b.gen.Next()
	b.evaluated = true
	b.current, b.present = next, ok

	if !ok {
		slog.Debug("skipped subscribing to null descriptor", "binding", b.name, "generation", gen)
		b.empty()
		return
	}

	slog.Debug("subscribing", "binding", b.name, "generation", gen)
	b.teardown = b.open(next, gen)
}

func (b *binding[D]) sameDescriptor(next D, ok bool) bool {
	if !ok || !b.present {
		// Two nulls are equal; null and non-null never are.
		return ok == b.present
	}
	return b.equal(b.current, next)
}

func (b *binding[D]) teardownCurrent() {
	if b.teardown == nil {
		return
	}
	t := b.teardown
	b.teardown = nil
	slog.Debug("unsubscribing", "binding", b.name, "generation", b.gen.Current())
	t()
}

func (b *binding[D]) dispose() {
	if b.disposed {
		return
	}
	b.disposed = true

	for _, d := range b.deps {
		d.Dispose()
	}
	b.deps = nil

	b.teardownCurrent()
	b.gen.Next()
	var zero D
	b.current, b.present = zero, false
	b.reset()
}

// live reports whether a callback opened with gen may still publish.
// Runtime goroutine only.
func (b *binding[D]) live(gen int64) bool {
	return !b.disposed && !b.closed.Load() && gen == b.gen.Current()
}

// deliver posts fn to the runtime and runs it only if gen is still live.
// Safe from any goroutine.
func (b *binding[D]) deliver(gen int64, fn func()) {
	b.rt.Post(func() {
		if !b.live(gen) {
			slog.Debug("discarded stale callback",
				"binding", b.name,
				"generation", gen,
				"current", b.gen.Current(),
			)
			return
		}
		fn()
	})
}

// fail surfaces a provider error on the caller's error channel.
func (b *binding[D]) fail(err error) {
	b.onError(err)
}
