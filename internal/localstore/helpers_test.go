package localstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/teamsync/internal/testutil"
)

// createTestStore opens a store in a temp dir with deterministic IDs and
// wall clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	defaults := []Option{
		WithIDGenerator(testutil.NewSequentialIDGenerator("doc")),
		WithNow(testutil.NewFixedClock(time.Time{}).Now),
	}
	s, err := Open(path, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.Flush(ctx)
	require.NoError(t, err)
}

// recorder collects listener callbacks.
type recorder[S any] struct {
	mu    sync.Mutex
	snaps []S
	errs  []error
}

func (r *recorder[S]) next(s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder[S]) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[S]) all() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]S(nil), r.snaps...)
}

func (r *recorder[S]) last() S {
	all := r.all()
	return all[len(all)-1]
}

func (r *recorder[S]) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
