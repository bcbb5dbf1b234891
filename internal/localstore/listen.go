package localstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/roach88/teamsync/internal/backend"
)

// listener is one OnSnapshot registration. docID is empty for query
// listeners, which fire on every write to the collection.
type listener struct {
	id         string
	collection string
	docID      string
	path       string
	deliver    func()
	removed    atomic.Bool
}

// hub fans write notifications out to listeners.
//
// Deliveries run one at a time on a single goroutine in the order they were
// queued, so snapshots for a listener arrive in write order. Snapshots are
// read at delivery time, never at queue time.
type hub struct {
	store *Store

	mu        sync.Mutex
	cond      *sync.Cond
	listeners map[string]map[string]*listener // collection -> listener id
	jobs      []func()
	closed    bool
	stopped   chan struct{}
}

func newHub(s *Store) *hub {
	h := &hub{
		store:     s,
		listeners: make(map[string]map[string]*listener),
		stopped:   make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.run()
	return h
}

func (h *hub) run() {
	defer close(h.stopped)
	for {
		h.mu.Lock()
		for len(h.jobs) == 0 && !h.closed {
			h.cond.Wait()
		}
		if h.closed {
			h.mu.Unlock()
			return
		}
		jobs := h.jobs
		h.jobs = nil
		h.mu.Unlock()

		for _, job := range jobs {
			job()
		}
	}
}

// enqueue adds jobs in order. Callers hold h.mu.
func (h *hub) enqueue(jobs ...func()) {
	h.jobs = append(h.jobs, jobs...)
	h.cond.Signal()
}

// add registers a listener and queues its initial snapshot.
func (h *hub) add(collection, docID, path string, deliver func(), fail func(error)) backend.Unsubscribe {
	l := &listener{
		id:         ulid.Make().String(),
		collection: collection,
		docID:      docID,
		path:       path,
		deliver:    deliver,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		fail(backend.ErrClosed)
		return func() {}
	}
	byID, ok := h.listeners[collection]
	if !ok {
		byID = make(map[string]*listener)
		h.listeners[collection] = byID
	}
	byID[l.id] = l
	h.enqueue(h.fire(l))
	h.mu.Unlock()

	slog.Debug("listener added", "listener", l.id, "path", path)

	return func() {
		if l.removed.Swap(true) {
			return
		}
		h.mu.Lock()
		delete(h.listeners[collection], l.id)
		if len(h.listeners[collection]) == 0 {
			delete(h.listeners, collection)
		}
		h.mu.Unlock()
		slog.Debug("listener removed", "listener", l.id, "path", path)
	}
}

func (h *hub) fire(l *listener) func() {
	return func() {
		if l.removed.Load() || h.store.isClosed() {
			return
		}
		l.deliver()
	}
}

// notify queues a fresh snapshot for every listener a write to
// collection/docID can affect.
func (h *hub) notify(collection, docID string, seq int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	n := 0
	for _, l := range h.listeners[collection] {
		if l.docID != "" && l.docID != docID {
			continue
		}
		h.enqueue(h.fire(l))
		n++
	}
	slog.Debug("write committed", "collection", collection, "id", docID, "seq", seq, "listeners", n)
}

// notifyChanged queues one fresh snapshot for every listener affected by
// changed, which maps a collection to the IDs written in it. Query
// listeners fire once however many of their documents changed.
func (h *hub) notifyChanged(changed map[string]map[string]struct{}, seq int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	n := 0
	for collection, ids := range changed {
		for _, l := range h.listeners[collection] {
			if l.docID != "" {
				if _, ok := ids[l.docID]; !ok {
					continue
				}
			}
			h.enqueue(h.fire(l))
			n++
		}
	}
	slog.Debug("external writes detected", "collections", len(changed), "seq", seq, "listeners", n)
}

// flush waits until the jobs queued before the call have run.
func (h *hub) flush(ctx context.Context) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, nil
	}
	n := len(h.jobs)
	barrier := make(chan struct{})
	h.enqueue(func() { close(barrier) })
	h.mu.Unlock()

	select {
	case <-barrier:
		return n, nil
	case <-h.stopped:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.jobs = nil
	h.listeners = make(map[string]map[string]*listener)
	h.cond.Broadcast()
}
