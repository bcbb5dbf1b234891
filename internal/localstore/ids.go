package localstore

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// UUIDv7Generator generates time-sortable UUIDv7 document IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// clock is the highest seq this store has written or observed.
type clock struct {
	seq atomic.Int64
}

// observe moves the clock forward to seq if it is behind.
func (c *clock) observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

func (c *clock) current() int64 {
	return c.seq.Load()
}
