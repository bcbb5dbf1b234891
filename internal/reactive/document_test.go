package reactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/teamsync/internal/backend"
)

func TestObserveDocument_PublishesSnapshot(t *testing.T) {
	rt := NewRuntime()
	ref := newFakeDoc("users/42")

	b := ObserveDocument[profile](rt, Static[backend.DocumentRef](ref))
	rt.Drain()

	// No snapshot yet: the transient lead-in is "not ready", never an error.
	assert.False(t, b.Get().Ready)

	ref.emit(map[string]any{"name": "Ann"})
	rt.Drain()

	got := b.Get()
	assert.Equal(t, "42", got.ID)
	assert.True(t, got.Exists)
	assert.True(t, got.Ready)
	require.NotNil(t, got.Data)
	assert.Equal(t, "Ann", got.Data.Name)
	assert.Nil(t, got.Metadata, "metadata only with WithMetadataChanges")
}

func TestObserveDocument_MissingDocument(t *testing.T) {
	rt := NewRuntime()
	ref := newFakeDoc("users/7")

	b := ObserveDocument[profile](rt, Static[backend.DocumentRef](ref))
	rt.Drain()
	ref.emit(nil)
	rt.Drain()

	got := b.Get()
	assert.Equal(t, "7", got.ID)
	assert.False(t, got.Exists)
	assert.Nil(t, got.Data)
	assert.True(t, got.Ready)
}

func TestObserveDocument_NullDescriptor(t *testing.T) {
	rt := NewRuntime()
	calls := 0
	src := func() (backend.DocumentRef, bool) {
		calls++
		return nil, false
	}

	b := ObserveDocument[profile](rt, src)
	rt.Drain()

	assert.Equal(t, Doc[profile]{Ready: true}, b.Get())
	assert.Equal(t, 1, calls)
}

func TestObserveDocument_NullIdempotence(t *testing.T) {
	rt := NewRuntime()
	b := ObserveDocument[profile](rt, Null[backend.DocumentRef]())
	rt.Drain()

	gen := b.Generation()
	version := b.Value().Version()

	for i := 0; i < 3; i++ {
		b.Refresh()
		rt.Drain()
	}

	assert.Equal(t, gen, b.Generation(), "repeated null must not start new subscription cycles")
	assert.Equal(t, version, b.Value().Version(), "repeated null must not republish")
}

func TestObserveDocument_ExactlyOneSubscription(t *testing.T) {
	rt := NewRuntime()
	docs := []*fakeDoc{newFakeDoc("users/a"), newFakeDoc("users/b"), newFakeDoc("users/c")}
	current := 0

	b := ObserveDocument[profile](rt, func() (backend.DocumentRef, bool) {
		return docs[current], true
	})
	rt.Drain()

	activeTotal := func() int {
		n := 0
		for _, d := range docs {
			n += d.listeners.activeCount()
		}
		return n
	}
	assert.Equal(t, 1, activeTotal())

	for current = 1; current < len(docs); current++ {
		b.Refresh()
		rt.Drain()
		assert.Equal(t, 1, activeTotal())
	}

	b.Dispose()
	rt.Drain()
	assert.Equal(t, 0, activeTotal())

	for _, d := range docs {
		subs, unsubs := d.listeners.counts()
		assert.Equal(t, 1, subs, d.path)
		assert.Equal(t, 1, unsubs, "%s must be torn down exactly once", d.path)
	}
}

func TestObserveDocument_EqualDescriptorKeepsSubscription(t *testing.T) {
	rt := NewRuntime()
	first := newFakeDoc("users/42")
	var built []*fakeDoc

	b := ObserveDocument[profile](rt, func() (backend.DocumentRef, bool) {
		// A fresh reference to the same path on every evaluation.
		d := newFakeDoc("users/42")
		if len(built) == 0 {
			d = first
		}
		built = append(built, d)
		return d, true
	})
	rt.Drain()

	for i := 0; i < 3; i++ {
		b.Refresh()
		rt.Drain()
	}
	require.Len(t, built, 4)

	subs, unsubs := first.listeners.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 0, unsubs)

	first.emit(map[string]any{"name": "Still live"})
	rt.Drain()
	assert.Equal(t, "Still live", b.Get().Data.Name)
}

func TestObserveDocument_StaleSnapshotDiscarded(t *testing.T) {
	rt := NewRuntime()
	a, bDoc := newFakeDoc("users/a"), newFakeDoc("users/b")
	var current backend.DocumentRef = a

	b := ObserveDocument[profile](rt, func() (backend.DocumentRef, bool) { return current, true })
	rt.Drain()

	// Supersede a, then let a's in-flight snapshot arrive afterwards.
	current = bDoc
	b.Refresh()
	a.emitTo(0, map[string]any{"name": "stale"})
	rt.Drain()

	assert.False(t, b.Get().Ready)
	assert.Nil(t, b.Get().Data)

	bDoc.emit(map[string]any{"name": "fresh"})
	a.emitTo(0, map[string]any{"name": "stale again"})
	rt.Drain()

	got := b.Get()
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, "fresh", got.Data.Name)
}

func TestObserveDocument_SwitchResetsBeforeNewSnapshot(t *testing.T) {
	rt := NewRuntime()
	a, bDoc := newFakeDoc("users/a"), newFakeDoc("users/b")
	var current backend.DocumentRef = a

	b := ObserveDocument[profile](rt, func() (backend.DocumentRef, bool) { return current, true })
	rt.Drain()
	a.emit(map[string]any{"name": "Ann"})
	rt.Drain()
	require.True(t, b.Get().Ready)

	current = bDoc
	b.Refresh()
	rt.Drain()
	assert.Equal(t, Doc[profile]{}, b.Get(), "previous document must not stay visible")
}

func TestObserveDocument_DisposalFinality(t *testing.T) {
	rt := NewRuntime()
	ref := newFakeDoc("users/42")

	b := ObserveDocument[profile](rt, Static[backend.DocumentRef](ref))
	rt.Drain()
	ref.emit(map[string]any{"name": "Ann"})
	rt.Drain()

	b.Dispose()
	// Already in flight when disposed.
	ref.emitTo(0, map[string]any{"name": "late"})
	rt.Drain()

	assert.Equal(t, Doc[profile]{}, b.Get())
	version := b.Value().Version()

	ref.emitTo(0, map[string]any{"name": "later"})
	b.Refresh()
	rt.Drain()
	assert.Equal(t, version, b.Value().Version(), "no publications after disposal")
}

func TestObserveDocument_MetadataChanges(t *testing.T) {
	rt := NewRuntime()
	ref := newFakeDoc("users/42")

	b := ObserveDocument[profile](rt, Static[backend.DocumentRef](ref), WithMetadataChanges())
	rt.Drain()
	ref.emit(map[string]any{"name": "Ann"})
	rt.Drain()

	require.NotNil(t, b.Get().Metadata)
	assert.False(t, b.Get().Metadata.HasPendingWrites)
}

func TestObserveDocument_ProviderErrorPropagates(t *testing.T) {
	rt := NewRuntime()
	ref := newFakeDoc("users/42")
	cause := errors.New("permission denied")

	var got []error
	b := ObserveDocument[profile](rt, Static[backend.DocumentRef](ref),
		WithName("profile"),
		WithErrorHandler(func(err error) { got = append(got, err) }),
	)
	rt.Drain()

	ref.failActive(cause)
	rt.Drain()

	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], cause)
	assert.True(t, IsProviderError(got[0]))
	assert.Equal(t, "listen users/42: permission denied", got[0].Error())
	assert.False(t, b.Get().Ready, "errors are not masked as data")
}

func TestObserveDocument_DependencyTriggersResubscribe(t *testing.T) {
	rt := NewRuntime()
	uid := NewValue("")
	users := newFakeCollection("users")

	b := ObserveDocument[profile](rt, func() (backend.DocumentRef, bool) {
		if id := uid.Get(); id != "" {
			return users.Doc(id), true
		}
		return nil, false
	}, WithDependencies(uid))
	rt.Drain()
	assert.True(t, b.Get().Ready)
	assert.False(t, b.Get().Exists)

	uid.set("u1")
	rt.Drain()
	users.doc("u1").emit(map[string]any{"name": "One"})
	rt.Drain()
	assert.Equal(t, "One", b.Get().Data.Name)

	uid.set("")
	rt.Drain()
	assert.Equal(t, Doc[profile]{Ready: true}, b.Get())
	assert.Equal(t, 0, users.doc("u1").listeners.activeCount())
}
