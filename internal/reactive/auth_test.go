package reactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/teamsync/internal/backend"
)

func defaultProfile(p *backend.Principal) profile {
	name := p.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return profile{Name: name}
}

func TestObserveAuth_SignedOut(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}

	a := ObserveAuth[profile](rt, auth, nil)
	rt.Drain()
	assert.Equal(t, AuthState[profile]{}, a.Get(), "not ready before the first callback")

	auth.set(nil)
	rt.Drain()
	assert.Equal(t, AuthState[profile]{Ready: true}, a.Get())
}

func TestObserveAuth_PrincipalWithoutHydration(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}

	a := ObserveAuth[profile](rt, auth, nil)
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1", DisplayName: "Ann"})
	rt.Drain()

	got := a.Get()
	assert.True(t, got.Ready)
	assert.True(t, got.SignedIn)
	require.NotNil(t, got.CurrentUser)
	assert.Equal(t, "u1", got.CurrentUser.UID)
	assert.Nil(t, got.CurrentUserData)
}

func TestObserveAuth_HydratesExistingProfile(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()

	assert.True(t, a.Get().SignedIn)
	assert.False(t, a.Get().Ready, "waiting for the profile")

	users.doc("u1").emit(map[string]any{"name": "Ann", "team": "t1"})
	rt.Drain()

	got := a.Get()
	assert.True(t, got.Ready)
	require.NotNil(t, got.CurrentUserData)
	assert.Equal(t, profile{Name: "Ann", Team: "t1"}, *got.CurrentUserData)
	assert.Zero(t, users.doc("u1").setCount())
}

func TestObserveAuth_WritesDefaultProfile(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()

	doc := users.doc("u1")
	// Two missing snapshots before the write lands: one default write.
	doc.emit(nil)
	doc.emit(nil)
	settle(t, rt)

	got := a.Get()
	assert.True(t, got.Ready)
	require.NotNil(t, got.CurrentUserData)
	assert.Equal(t, "Anonymous", got.CurrentUserData.Name)
	assert.Equal(t, 1, doc.setCount())
}

func TestObserveAuth_MissingProfileWithoutDefault(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	users.doc("u1").emit(nil)
	settle(t, rt)

	assert.True(t, a.Get().Ready)
	assert.Nil(t, a.Get().CurrentUserData)
	assert.Zero(t, users.doc("u1").setCount())
}

func TestObserveAuth_StaleHydrationAfterUserSwitch(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1", DisplayName: "One"})
	rt.Drain()

	// u2 signs in while u1's missing-profile snapshot is still in flight.
	auth.set(&backend.Principal{UID: "u2", DisplayName: "Two"})
	users.doc("u1").emitTo(0, nil)
	settle(t, rt)

	assert.Zero(t, users.doc("u1").setCount(), "no default write for the previous user")
	assert.Zero(t, users.doc("u1").listeners.activeCount())
	assert.Equal(t, "u2", a.Get().CurrentUser.UID)

	users.doc("u2").emit(nil)
	settle(t, rt)

	got := a.Get()
	assert.True(t, got.Ready)
	assert.Equal(t, "Two", got.CurrentUserData.Name)
	assert.Equal(t, 1, users.doc("u2").setCount())
}

func TestObserveAuth_UserSwitchClearsProfile(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	users.doc("u1").emit(map[string]any{"name": "One"})
	rt.Drain()
	require.NotNil(t, a.Get().CurrentUserData)

	auth.set(&backend.Principal{UID: "u2"})
	rt.Drain()

	got := a.Get()
	assert.Nil(t, got.CurrentUserData, "u1's profile must not be shown for u2")
	assert.True(t, got.Ready, "ready is kept while the next profile loads")

	// Same principal again keeps the loaded data until the next snapshot.
	users.doc("u2").emit(map[string]any{"name": "Two"})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u2", DisplayName: "Renamed"})
	rt.Drain()
	require.NotNil(t, a.Get().CurrentUserData)
	assert.Equal(t, "Two", a.Get().CurrentUserData.Name)
}

func TestObserveAuth_SignOutStopsHydration(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	users.doc("u1").emit(map[string]any{"name": "One"})
	rt.Drain()

	auth.set(nil)
	rt.Drain()

	assert.Equal(t, AuthState[profile]{Ready: true}, a.Get())
	assert.Zero(t, users.doc("u1").listeners.activeCount())
}

func TestObserveAuth_DefaultWriteFailure(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")
	users.doc("u1").setErr = backend.ErrPermissionDenied

	var got []error
	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile},
		WithErrorHandler(func(err error) { got = append(got, err) }))
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	users.doc("u1").emit(nil)
	settle(t, rt)

	require.Len(t, got, 1)
	var pe *ProviderError
	require.True(t, errors.As(got[0], &pe))
	assert.Equal(t, "set", pe.Op)
	assert.Equal(t, "users/u1", pe.Path)
	assert.ErrorIs(t, got[0], backend.ErrPermissionDenied)
	assert.False(t, a.Get().Ready)
}

func TestObserveAuth_DisposeResets(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	users := newFakeCollection("users")

	a := ObserveAuth(rt, auth, &Hydration[profile]{Collection: users, Default: defaultProfile})
	rt.Drain()
	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	users.doc("u1").emit(map[string]any{"name": "One"})
	rt.Drain()

	a.Dispose()
	rt.Drain()

	assert.Equal(t, AuthState[profile]{}, a.Get())
	assert.Zero(t, auth.listeners.activeCount())
	assert.Zero(t, users.doc("u1").listeners.activeCount())

	version := a.Value().Version()
	auth.set(&backend.Principal{UID: "u2"})
	users.doc("u1").emitTo(0, map[string]any{"name": "late"})
	rt.Drain()
	assert.Equal(t, version, a.Value().Version())
}

func TestObserveAuth_DependentQueryFollowsSignIn(t *testing.T) {
	rt := NewRuntime()
	auth := &fakeAuth{}
	teams := newFakeCollection("teams")

	a := ObserveAuth[profile](rt, auth, nil)
	q := ObserveQuery[teamRow](rt, func() (backend.Query, bool) {
		if a.Get().SignedIn {
			return teams, true
		}
		return nil, false
	}, WithDependencies(a))
	rt.Drain()
	assert.Zero(t, teams.listeners.activeCount())

	auth.set(&backend.Principal{UID: "u1"})
	rt.Drain()
	teams.emit(map[string]any{"id": "t1", "name": "Red"})
	rt.Drain()
	assert.Len(t, q.Get(), 1)

	auth.set(nil)
	rt.Drain()
	assert.Nil(t, q.Get())
	assert.Zero(t, teams.listeners.activeCount())
}
