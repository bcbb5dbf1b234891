package reactive

import (
	"github.com/roach88/teamsync/internal/backend"
)

// Doc is the published state of a document binding.
type Doc[T any] struct {
	// ID is empty when no document is bound.
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
	// Data is nil when the document does not exist or nothing is bound.
	Data *T `json:"data"`
	// Metadata is set only with WithMetadataChanges.
	Metadata *backend.SnapshotMetadata `json:"metadata"`
	Ready    bool                      `json:"ready"`
}

// DocumentBinding keeps a Doc[T] in sync with one document reference.
type DocumentBinding[T any] struct {
	*binding[backend.DocumentRef]
	value  *Value[Doc[T]]
	listen backend.ListenOptions
}

// ObserveDocument subscribes to the document resolved by src.
//
// A null reference publishes a ready, non-existent document and makes no
// provider call. Re-resolving to a reference that IsEqual to the current
// one keeps the existing listener.
//
//	profile := reactive.ObserveDocument[User](rt, func() (backend.DocumentRef, bool) {
//		if uid := session.UID(); uid != "" {
//			return users.Doc(uid), true
//		}
//		return nil, false
//	}, reactive.WithDependencies(session))
func ObserveDocument[T any](rt *Runtime, src Source[backend.DocumentRef], opts ...Option) *DocumentBinding[T] {
	s := newSettings("document", opts)
	d := &DocumentBinding[T]{
		value:  NewValue(Doc[T]{}),
		listen: s.listen,
	}
	d.binding = newBinding(rt, s, src, documentsEqual)
	d.open = d.subscribe
	d.empty = func() { d.value.set(Doc[T]{Ready: true}) }
	d.reset = func() { d.value.set(Doc[T]{}) }
	d.start(s.deps)
	return d
}

// Value returns the published document state.
func (d *DocumentBinding[T]) Value() *Value[Doc[T]] {
	return d.value
}

// Get returns the current document state.
func (d *DocumentBinding[T]) Get() Doc[T] {
	return d.value.Get()
}

func (d *DocumentBinding[T]) subscribe(ref backend.DocumentRef, gen int64) func() {
	// Lead-in: a previous document's data must not stay visible while
	// the new listener has not reported yet.
	if cur := d.value.Get(); cur.Ready || cur.Exists {
		d.value.set(Doc[T]{})
	}

	path := ref.Path()
	unsubscribe := ref.OnSnapshot(d.listen,
		func(snap *backend.DocumentSnapshot) {
			d.deliver(gen, func() { d.publish(ref, snap) })
		},
		func(err error) {
			d.deliver(gen, func() {
				d.fail(&ProviderError{Binding: d.name, Op: "listen", Path: path, Err: err})
			})
		},
	)
	return func() { unsubscribe() }
}

func (d *DocumentBinding[T]) publish(ref backend.DocumentRef, snap *backend.DocumentSnapshot) {
	doc := Doc[T]{
		ID:     ref.ID(),
		Exists: snap.Exists,
		Ready:  true,
	}
	if snap.Exists {
		var data T
		if err := snap.DataTo(&data); err != nil {
			d.fail(&ProviderError{Binding: d.name, Op: "decode", Path: ref.Path(), Err: err})
			return
		}
		doc.Data = &data
	}
	if d.listen.IncludeMetadataChanges {
		md := snap.Metadata
		doc.Metadata = &md
	}
	d.value.set(doc)
}

func documentsEqual(a, b backend.DocumentRef) bool {
	return a.IsEqual(b)
}
