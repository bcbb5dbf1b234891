package reactive

import (
	"github.com/roach88/teamsync/internal/backend"
)

// QueryDoc is one row of a published query result.
type QueryDoc[T any] struct {
	ID       string                    `json:"id"`
	Data     T                         `json:"data"`
	Metadata *backend.SnapshotMetadata `json:"metadata"`
}

// QueryBinding keeps an ordered result set in sync with one query.
// The published slice is nil while the query is null.
type QueryBinding[T any] struct {
	*binding[backend.Query]
	value  *Value[[]QueryDoc[T]]
	listen backend.ListenOptions
}

// ObserveQuery subscribes to the query resolved by src. Every snapshot
// replaces the whole published slice, in provider order.
//
// Queries are compared with Query.IsEqual, so a getter that rebuilds an
// identical query on every evaluation does not resubscribe.
func ObserveQuery[T any](rt *Runtime, src Source[backend.Query], opts ...Option) *QueryBinding[T] {
	s := newSettings("query", opts)
	q := &QueryBinding[T]{
		value:  NewValue[[]QueryDoc[T]](nil),
		listen: s.listen,
	}
	q.binding = newBinding(rt, s, src, queriesEqual)
	q.open = q.subscribe
	q.empty = func() { q.value.set(nil) }
	q.reset = func() { q.value.set(nil) }
	q.start(s.deps)
	return q
}

// Value returns the published result set.
func (q *QueryBinding[T]) Value() *Value[[]QueryDoc[T]] {
	return q.value
}

// Get returns the current result set.
func (q *QueryBinding[T]) Get() []QueryDoc[T] {
	return q.value.Get()
}

func (q *QueryBinding[T]) subscribe(query backend.Query, gen int64) func() {
	path := query.Path()
	unsubscribe := query.OnSnapshot(q.listen,
		func(snap *backend.QuerySnapshot) {
			q.deliver(gen, func() { q.publish(path, snap) })
		},
		func(err error) {
			q.deliver(gen, func() {
				q.fail(&ProviderError{Binding: q.name, Op: "listen", Path: path, Err: err})
			})
		},
	)
	return func() { unsubscribe() }
}

func (q *QueryBinding[T]) publish(path string, snap *backend.QuerySnapshot) {
	docs := make([]QueryDoc[T], 0, len(snap.Docs))
	for _, ds := range snap.Docs {
		row := QueryDoc[T]{ID: ds.ID}
		if err := ds.DataTo(&row.Data); err != nil {
			q.fail(&ProviderError{Binding: q.name, Op: "decode", Path: ds.Path, Err: err})
			return
		}
		if q.listen.IncludeMetadataChanges {
			md := ds.Metadata
			row.Metadata = &md
		}
		docs = append(docs, row)
	}
	q.value.set(docs)
}

func queriesEqual(a, b backend.Query) bool {
	return a.IsEqual(b)
}
