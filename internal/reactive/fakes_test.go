package reactive

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/roach88/teamsync/internal/backend"
)

// registration records one listener, including removed ones, so tests
// can replay late callbacks from superseded subscriptions.
type registration[S any] struct {
	next    func(S)
	fail    func(error)
	removed bool
}

type listeners[S any] struct {
	mu           sync.Mutex
	regs         []*registration[S]
	subscribes   int
	unsubscribes int
}

func (l *listeners[S]) add(next func(S), fail func(error)) backend.Unsubscribe {
	l.mu.Lock()
	defer l.mu.Unlock()
	reg := &registration[S]{next: next, fail: fail}
	l.regs = append(l.regs, reg)
	l.subscribes++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if reg.removed {
			return
		}
		reg.removed = true
		l.unsubscribes++
	}
}

func (l *listeners[S]) active() []*registration[S] {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*registration[S]
	for _, r := range l.regs {
		if !r.removed {
			out = append(out, r)
		}
	}
	return out
}

func (l *listeners[S]) activeCount() int {
	return len(l.active())
}

func (l *listeners[S]) registration(i int) *registration[S] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[i]
}

func (l *listeners[S]) counts() (subscribes, unsubscribes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subscribes, l.unsubscribes
}

// fakeDoc is a DocumentRef whose snapshots are emitted by the test.
type fakeDoc struct {
	path      string
	parent    backend.CollectionRef
	listeners listeners[*backend.DocumentSnapshot]

	mu     sync.Mutex
	raw    []byte
	sets   int
	setErr error
}

func newFakeDoc(path string) *fakeDoc {
	return &fakeDoc{path: path}
}

func (d *fakeDoc) ID() string {
	return d.path[strings.LastIndex(d.path, "/")+1:]
}

func (d *fakeDoc) Path() string                  { return d.path }
func (d *fakeDoc) Parent() backend.CollectionRef { return d.parent }

func (d *fakeDoc) snapshot() *backend.DocumentSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return backend.NewDocumentSnapshot(d.ID(), d.path, d.raw, backend.SnapshotMetadata{})
}

func (d *fakeDoc) Get(ctx context.Context) (*backend.DocumentSnapshot, error) {
	return d.snapshot(), nil
}

func (d *fakeDoc) Set(ctx context.Context, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sets++
	if d.setErr != nil {
		d.mu.Unlock()
		return d.setErr
	}
	d.raw = raw
	d.mu.Unlock()
	d.emitCurrent()
	return nil
}

func (d *fakeDoc) Update(ctx context.Context, fields map[string]any) error {
	return d.Set(ctx, fields)
}

func (d *fakeDoc) OnSnapshot(opts backend.ListenOptions, next func(*backend.DocumentSnapshot), fail func(error)) backend.Unsubscribe {
	return d.listeners.add(next, fail)
}

func (d *fakeDoc) IsEqual(other backend.DocumentRef) bool {
	return other != nil && other.Path() == d.path
}

func (d *fakeDoc) setCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sets
}

// emit stores data (nil = missing) and notifies active listeners.
func (d *fakeDoc) emit(data map[string]any) {
	d.mu.Lock()
	d.raw = nil
	if data != nil {
		d.raw, _ = json.Marshal(data)
	}
	d.mu.Unlock()
	d.emitCurrent()
}

func (d *fakeDoc) emitCurrent() {
	snap := d.snapshot()
	for _, r := range d.listeners.active() {
		r.next(snap)
	}
}

// emitTo delivers data to registration i even if it was removed,
// simulating a callback already in flight when the listener was cancelled.
func (d *fakeDoc) emitTo(i int, data map[string]any) {
	var raw []byte
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	d.listeners.registration(i).next(backend.NewDocumentSnapshot(d.ID(), d.path, raw, backend.SnapshotMetadata{}))
}

func (d *fakeDoc) failActive(err error) {
	for _, r := range d.listeners.active() {
		r.fail(err)
	}
}

// fakeQuery is a Query compared by key.
type fakeQuery struct {
	path      string
	key       string
	listeners listeners[*backend.QuerySnapshot]
}

func newFakeQuery(path, key string) *fakeQuery {
	return &fakeQuery{path: path, key: key}
}

func (q *fakeQuery) Path() string { return q.path }

func (q *fakeQuery) Where(field string, op backend.Operator, value any) backend.Query {
	return newFakeQuery(q.path, q.key+"|"+field+string(op))
}

func (q *fakeQuery) OrderBy(field string, dir backend.Direction) backend.Query {
	return newFakeQuery(q.path, q.key+"|order:"+field)
}

func (q *fakeQuery) Limit(n int) backend.Query {
	return q
}

func (q *fakeQuery) Get(ctx context.Context) (*backend.QuerySnapshot, error) {
	return &backend.QuerySnapshot{}, nil
}

func (q *fakeQuery) OnSnapshot(opts backend.ListenOptions, next func(*backend.QuerySnapshot), fail func(error)) backend.Unsubscribe {
	return q.listeners.add(next, fail)
}

func (q *fakeQuery) structuralKey() string {
	return q.path + "?" + q.key
}

func (q *fakeQuery) IsEqual(other backend.Query) bool {
	o, ok := other.(interface{ structuralKey() string })
	return ok && o.structuralKey() == q.structuralKey()
}

func querySnapshot(path string, rows ...map[string]any) *backend.QuerySnapshot {
	snap := &backend.QuerySnapshot{}
	for _, row := range rows {
		id, _ := row["id"].(string)
		raw, _ := json.Marshal(row)
		snap.Docs = append(snap.Docs, backend.NewDocumentSnapshot(id, path+"/"+id, raw, backend.SnapshotMetadata{Seq: 1}))
	}
	return snap
}

func (q *fakeQuery) emit(rows ...map[string]any) {
	snap := querySnapshot(q.path, rows...)
	for _, r := range q.listeners.active() {
		r.next(snap)
	}
}

func (q *fakeQuery) emitTo(i int, rows ...map[string]any) {
	q.listeners.registration(i).next(querySnapshot(q.path, rows...))
}

// fakeCollection hands out one fakeDoc per ID.
type fakeCollection struct {
	*fakeQuery
	mu   sync.Mutex
	docs map[string]*fakeDoc
}

func newFakeCollection(path string) *fakeCollection {
	return &fakeCollection{fakeQuery: newFakeQuery(path, ""), docs: make(map[string]*fakeDoc)}
}

func (c *fakeCollection) ID() string { return c.path }

func (c *fakeCollection) Doc(id string) backend.DocumentRef {
	return c.doc(id)
}

func (c *fakeCollection) doc(id string) *fakeDoc {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		d = newFakeDoc(c.path + "/" + id)
		d.parent = c
		c.docs[id] = d
	}
	return d
}

func (c *fakeCollection) Add(ctx context.Context, data any) (backend.DocumentRef, error) {
	d := c.doc("generated")
	return d, d.Set(ctx, data)
}

// fakeAuth reports principals pushed by the test.
type fakeAuth struct {
	listeners listeners[*backend.Principal]
	mu        sync.Mutex
	current   *backend.Principal
}

func (a *fakeAuth) OnAuthStateChanged(fn func(*backend.Principal)) backend.Unsubscribe {
	return a.listeners.add(fn, nil)
}

func (a *fakeAuth) CurrentUser() *backend.Principal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.Clone()
}

func (a *fakeAuth) SignOut(ctx context.Context) error {
	a.set(nil)
	return nil
}

func (a *fakeAuth) set(p *backend.Principal) {
	a.mu.Lock()
	a.current = p
	a.mu.Unlock()
	for _, r := range a.listeners.active() {
		r.next(p.Clone())
	}
}

type profile struct {
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}
