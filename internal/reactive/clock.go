package reactive

import "sync/atomic"

// Clock is a monotonic generation counter.
//
// Each binding advances its clock when a subscription is superseded or the
// binding is disposed. A callback is live only while the generation it was
// opened with is still the current one.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so
// liveness can be checked from provider goroutines for logging even though
// only the runtime goroutine advances it.
//
// The zero value is a clock at generation 0.
type Clock struct {
	seq atomic.Int64
}

// Next advances the clock and returns the new generation.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current generation without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
