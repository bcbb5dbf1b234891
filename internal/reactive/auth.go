package reactive

import (
	"context"
	"log/slog"

	"github.com/roach88/teamsync/internal/backend"
)

// AuthState is the published state of an auth binding.
type AuthState[T any] struct {
	// Ready is false until the first auth callback and, when hydrating,
	// until the profile document has been read.
	Ready           bool               `json:"ready"`
	SignedIn        bool               `json:"signedIn"`
	CurrentUser     *backend.Principal `json:"currentUser"`
	CurrentUserData *T                 `json:"currentUserData"`
}

// Hydration loads a profile document for the signed-in principal.
type Hydration[T any] struct {
	// Collection holds profile documents keyed by principal UID.
	Collection backend.CollectionRef

	// Default builds the profile written when none exists. With a nil
	// Default a missing profile is published as nil data.
	Default func(*backend.Principal) T
}

// AuthBinding tracks an auth provider and, optionally, the signed-in
// principal's profile document.
type AuthBinding[T any] struct {
	*binding[backend.AuthProvider]
	value     *Value[AuthState[T]]
	hydration *Hydration[T]
	listen    backend.ListenOptions

	// inner advances on every auth callback so a profile listener opened
	// for an earlier principal can no longer publish.
	inner         Clock
	stopHydration func()
	defaulted     int64 // inner generation that already wrote a default
}

// ObserveAuth subscribes to provider's auth state. With a non-nil
// hydration, every sign-in opens a listener on the principal's profile
// document; if the document is missing and a Default is configured, the
// default profile is written (last write wins, no transaction).
func ObserveAuth[T any](rt *Runtime, provider backend.AuthProvider, hydration *Hydration[T], opts ...Option) *AuthBinding[T] {
	s := newSettings("auth", opts)
	a := &AuthBinding[T]{
		value:     NewValue(AuthState[T]{}),
		hydration: hydration,
		listen:    s.listen,
	}
	a.binding = newBinding(rt, s, Static(provider), Identity[backend.AuthProvider])
	a.open = a.subscribe
	a.empty = func() {}
	a.reset = func() { a.value.set(AuthState[T]{}) }
	a.start(s.deps)
	return a
}

// Value returns the published auth state.
func (a *AuthBinding[T]) Value() *Value[AuthState[T]] {
	return a.value
}

// Get returns the current auth state.
func (a *AuthBinding[T]) Get() AuthState[T] {
	return a.value.Get()
}

// OnChange implements Observable so other bindings can depend on auth.
func (a *AuthBinding[T]) OnChange(fn func()) Disposable {
	return a.value.OnChange(fn)
}

func (a *AuthBinding[T]) subscribe(provider backend.AuthProvider, gen int64) func() {
	slog.Debug("subscribing to auth state", "binding", a.name)
	unsubscribe := provider.OnAuthStateChanged(func(p *backend.Principal) {
		p = p.Clone()
		a.deliver(gen, func() { a.onAuthState(gen, p) })
	})
	return func() {
		slog.Debug("unsubscribing from auth state", "binding", a.name)
		unsubscribe()
		a.stopHydrating()
	}
}

func (a *AuthBinding[T]) stopHydrating() {
	a.inner.Next()
	if a.stopHydration != nil {
		a.stopHydration()
		a.stopHydration = nil
	}
}

func (a *AuthBinding[T]) onAuthState(gen int64, p *backend.Principal) {
	a.stopHydrating()
	hgen := a.inner.Current()

	slog.Debug("auth state changed", "binding", a.name, "signed_in", p != nil)

	state := a.value.Get()
	previous := state.CurrentUser
	state.SignedIn = p != nil

	if p == nil {
		state.CurrentUser = nil
		state.CurrentUserData = nil
		state.Ready = true
		a.value.set(state)
		return
	}

	state.CurrentUser = p
	if previous == nil || previous.UID != p.UID {
		state.CurrentUserData = nil
	}

	if a.hydration == nil || a.hydration.Collection == nil {
		state.Ready = true
		a.value.set(state)
		return
	}
	a.value.set(state)

	doc := a.hydration.Collection.Doc(p.UID)
	slog.Debug("subscribing to current user data", "binding", a.name, "path", doc.Path())
	a.stopHydration = doc.OnSnapshot(a.listen,
		func(snap *backend.DocumentSnapshot) {
			a.deliver(gen, func() {
				if hgen != a.inner.Current() {
					slog.Debug("discarded stale profile snapshot", "binding", a.name, "path", doc.Path())
					return
				}
				a.onProfile(gen, hgen, p, doc, snap)
			})
		},
		func(err error) {
			a.deliver(gen, func() {
				if hgen != a.inner.Current() {
					return
				}
				a.fail(&ProviderError{Binding: a.name, Op: "listen", Path: doc.Path(), Err: err})
			})
		},
	)
}

func (a *AuthBinding[T]) onProfile(gen, hgen int64, p *backend.Principal, doc backend.DocumentRef, snap *backend.DocumentSnapshot) {
	var data *T
	if snap.Exists {
		var v T
		if err := snap.DataTo(&v); err != nil {
			a.fail(&ProviderError{Binding: a.name, Op: "decode", Path: doc.Path(), Err: err})
			return
		}
		data = &v
	}
	slog.Debug("current user snapshot", "binding", a.name, "path", doc.Path(), "exists", snap.Exists)

	state := a.value.Get()
	state.CurrentUserData = data

	if data != nil || a.hydration.Default == nil {
		state.Ready = true
		a.value.set(state)
		return
	}
	a.value.set(state)

	if a.defaulted == hgen {
		return
	}
	a.defaulted = hgen

	profile := a.hydration.Default(p)
	slog.Debug("writing default user data", "binding", a.name, "path", doc.Path())
	a.rt.Go(func() {
		if err := doc.Set(context.Background(), profile); err != nil {
			a.deliver(gen, func() {
				if hgen != a.inner.Current() {
					return
				}
				a.fail(&ProviderError{Binding: a.name, Op: "set", Path: doc.Path(), Err: err})
			})
		}
	})
}
