package reactive

import "sync"

// Disposable releases a subscription. Dispose is idempotent.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts fn into a Disposable that runs at most once.
func DisposeFunc(fn func()) Disposable {
	return &disposeOnce{fn: fn}
}

type disposeOnce struct {
	once sync.Once
	fn   func()
}

func (d *disposeOnce) Dispose() {
	d.once.Do(func() {
		if d.fn != nil {
			d.fn()
		}
	})
}

// Observable is anything a binding can depend on.
type Observable interface {
	OnChange(fn func()) Disposable
}

// Value is an observable published value.
//
// Only bindings in this package publish into a Value. Reads are safe from
// any goroutine; subscribers run synchronously on the publishing (runtime)
// goroutine, in subscription order.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	version int64
	subs    []valueSub[T]
	nextID  int64
}

type valueSub[T any] struct {
	id int64
	fn func(T)
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Version returns the number of publications so far.
func (v *Value[T]) Version() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Subscribe calls fn with every published value until disposed.
func (v *Value[T]) Subscribe(fn func(T)) Disposable {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs = append(v.subs, valueSub[T]{id: id, fn: fn})
	v.mu.Unlock()

	return DisposeFunc(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i:i], v.subs[i+1:]...)
				return
			}
		}
	})
}

// OnChange calls fn after every publication.
func (v *Value[T]) OnChange(fn func()) Disposable {
	return v.Subscribe(func(T) { fn() })
}

// set publishes x. Runtime goroutine only.
func (v *Value[T]) set(x T) {
	v.mu.Lock()
	v.current = x
	v.version++
	subs := make([]valueSub[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(x)
	}
}
