package reactive

// Source resolves the current descriptor. ok == false is the null
// descriptor: the binding publishes its empty value and holds no
// subscription.
//
// Sources are evaluated on the runtime goroutine, on the first run and on
// every Refresh or dependency change.
type Source[D any] func() (d D, ok bool)

// Equal reports whether two non-null descriptors identify the same
// subscription. Equal descriptors keep the existing subscription alive.
type Equal[D any] func(a, b D) bool

// Static returns a source that always resolves to d.
func Static[D any](d D) Source[D] {
	return func() (D, bool) { return d, true }
}

// Null returns a source that always resolves to the null descriptor.
func Null[D any]() Source[D] {
	return func() (D, bool) {
		var zero D
		return zero, false
	}
}

// Getter adapts a getter that signals null with nil-ness, such as
// func() backend.Query returning nil when signed out.
func Getter[D comparable](fn func() D) Source[D] {
	return func() (D, bool) {
		var zero D
		d := fn()
		return d, d != zero
	}
}

// Identity compares descriptors with ==.
func Identity[D comparable](a, b D) bool {
	return a == b
}
