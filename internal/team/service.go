package team

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/teamsync/internal/backend"
	"github.com/roach88/teamsync/internal/reactive"
)

// Authenticator is an auth provider that can sign in with an ID token.
type Authenticator interface {
	backend.AuthProvider
	SignIn(ctx context.Context, idToken string) (*backend.Principal, error)
	SignInAnonymously(ctx context.Context) (*backend.Principal, error)
}

// Database hands out collections.
type Database interface {
	Collection(path string) backend.CollectionRef
}

// Default collection names.
const (
	UsersCollection = "users"
	TeamsCollection = "teams"
)

type options struct {
	usersCollection string
	teamsCollection string
	bindingOpts     []reactive.Option
}

// Option configures a Service.
type Option func(*options)

// WithCollections overrides the users and teams collection names.
func WithCollections(users, teams string) Option {
	return func(o *options) {
		if users != "" {
			o.usersCollection = users
		}
		if teams != "" {
			o.teamsCollection = teams
		}
	}
}

// WithBindingOptions passes options (error handler, metadata changes) to
// every binding the service creates.
func WithBindingOptions(opts ...reactive.Option) Option {
	return func(o *options) {
		o.bindingOpts = append(o.bindingOpts, opts...)
	}
}

// Service is the team domain service.
//
// Reads are safe from any goroutine. The bindings publish on rt, so rt must
// be running (Run) or settled (Settle) for state to advance.
type Service struct {
	rt    *reactive.Runtime
	authn Authenticator

	users backend.CollectionRef
	teams backend.CollectionRef

	auth     *reactive.AuthBinding[User]
	userList *reactive.QueryBinding[User]
	teamList *reactive.QueryBinding[Team]
}

// New wires the auth, users and teams bindings.
func New(rt *reactive.Runtime, authn Authenticator, db Database, opts ...Option) *Service {
	o := options{
		usersCollection: UsersCollection,
		teamsCollection: TeamsCollection,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		rt:    rt,
		authn: authn,
		users: db.Collection(o.usersCollection),
		teams: db.Collection(o.teamsCollection),
	}

	s.auth = reactive.ObserveAuth(rt, authn, &reactive.Hydration[User]{
		Collection: s.users,
		Default:    DefaultProfile,
	}, append([]reactive.Option{reactive.WithName("auth")}, o.bindingOpts...)...)

	s.userList = reactive.ObserveQuery[User](rt, func() (backend.Query, bool) {
		if !s.auth.Get().SignedIn {
			return nil, false
		}
		return s.users, true
	}, append([]reactive.Option{
		reactive.WithName("users"),
		reactive.WithDependencies(s.auth),
	}, o.bindingOpts...)...)

	s.teamList = reactive.ObserveQuery[Team](rt, func() (backend.Query, bool) {
		if !s.auth.Get().SignedIn {
			return nil, false
		}
		return s.teams.OrderBy("name", backend.Asc), true
	}, append([]reactive.Option{
		reactive.WithName("teams"),
		reactive.WithDependencies(s.auth),
	}, o.bindingOpts...)...)

	return s
}

// AuthState exposes the auth binding's value for subscription.
func (s *Service) AuthState() *reactive.Value[reactive.AuthState[User]] {
	return s.auth.Value()
}

// UsersValue exposes the users listing for subscription.
func (s *Service) UsersValue() *reactive.Value[[]reactive.QueryDoc[User]] {
	return s.userList.Value()
}

// TeamsValue exposes the teams listing for subscription.
func (s *Service) TeamsValue() *reactive.Value[[]reactive.QueryDoc[Team]] {
	return s.teamList.Value()
}

// Ready reports whether the auth state and, when signed in, the profile
// have loaded.
func (s *Service) Ready() bool {
	return s.auth.Get().Ready
}

// SignedIn reports whether a principal is signed in.
func (s *Service) SignedIn() bool {
	return s.auth.Get().SignedIn
}

// Principal returns the signed-in principal, or nil.
func (s *Service) Principal() *backend.Principal {
	return s.auth.Get().CurrentUser
}

// CurrentUser returns the signed-in user's profile, or nil.
func (s *Service) CurrentUser() *User {
	return s.auth.Get().CurrentUserData
}

// Users returns the users listing, or nil when signed out or not loaded.
func (s *Service) Users() []User {
	rows := s.userList.Get()
	if rows == nil {
		return nil
	}
	out := make([]User, 0, len(rows))
	for _, row := range rows {
		u := row.Data
		if u.UID == "" {
			u.UID = row.ID
		}
		out = append(out, u)
	}
	return out
}

// Teams returns the teams ordered by name, or nil when signed out or not
// loaded.
func (s *Service) Teams() []Team {
	rows := s.teamList.Get()
	if rows == nil {
		return nil
	}
	out := make([]Team, 0, len(rows))
	for _, row := range rows {
		t := row.Data
		t.ID = row.ID
		out = append(out, t)
	}
	return out
}

// Loaded reports whether everything the signed-in state shows has loaded:
// the published auth state is ready and belongs to the provider's current
// principal. Signed in, the profile and both listings have reported;
// signed out, the listings are cleared.
func (s *Service) Loaded() bool {
	st := s.auth.Get()
	if !st.Ready {
		return false
	}
	// A sign-in or sign-out reaches the published state only once the
	// runtime has processed the provider callback.
	if !samePrincipal(st.CurrentUser, s.authn.CurrentUser()) {
		return false
	}
	if !st.SignedIn {
		return s.userList.Get() == nil && s.teamList.Get() == nil
	}
	return st.CurrentUserData != nil && s.userList.Get() != nil && s.teamList.Get() != nil
}

func samePrincipal(a, b *backend.Principal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UID == b.UID
}

// WaitReady blocks until Loaded or ctx is done. The runtime must be
// running.
func (s *Service) WaitReady(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	for _, v := range []reactive.Observable{s.auth.Value(), s.userList.Value(), s.teamList.Value()} {
		d := v.OnChange(notify)
		defer d.Dispose()
	}

	for !s.Loaded() {
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("wait for ready: %w", ctx.Err())
		}
	}
	return nil
}

// SignIn signs in with an ID token. The profile and listings follow
// asynchronously; use WaitReady to wait for them.
func (s *Service) SignIn(ctx context.Context, idToken string) error {
	slog.Info("signing in")
	p, err := s.authn.SignIn(ctx, idToken)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	slog.Info("signed in", "uid", p.UID)
	return nil
}

// SignInAnonymously starts an anonymous session.
func (s *Service) SignInAnonymously(ctx context.Context) error {
	slog.Info("signing in anonymously")
	p, err := s.authn.SignInAnonymously(ctx)
	if err != nil {
		return fmt.Errorf("sign in anonymously: %w", err)
	}
	slog.Info("signed in", "uid", p.UID, "anonymous", true)
	return nil
}

// SignOut ends the session.
func (s *Service) SignOut(ctx context.Context) error {
	slog.Info("signing out")
	if err := s.authn.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	slog.Info("signed out")
	return nil
}

// CreateTeam adds a team and joins it. The name is trimmed and NFC
// normalized. It returns the new team's ID.
func (s *Service) CreateTeam(ctx context.Context, name string) (string, error) {
	name = NormalizeName(name)
	if name == "" {
		return "", ErrInvalidTeamName
	}

	slog.Info("creating team", "name", name)
	ref, err := s.teams.Add(ctx, Team{Name: name})
	if err != nil {
		return "", fmt.Errorf("create team %q: %w", name, err)
	}
	slog.Info("created team", "id", ref.ID(), "name", name)

	if err := s.JoinTeam(ctx, ref.ID()); err != nil {
		return ref.ID(), err
	}
	return ref.ID(), nil
}

// NormalizeName trims and NFC normalizes a team name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// JoinTeam sets the signed-in user's team. Without a signed-in principal it
// does nothing.
func (s *Service) JoinTeam(ctx context.Context, teamID string) error {
	if teamID == "" {
		return ErrInvalidTeamID
	}
	p := s.authn.CurrentUser()
	if p == nil {
		slog.Info("join team skipped: not signed in", "team", teamID)
		return nil
	}

	slog.Info("joining team", "uid", p.UID, "team", teamID)
	if err := s.users.Doc(p.UID).Update(ctx, map[string]any{"team": teamID}); err != nil {
		return fmt.Errorf("join team %s: %w", teamID, err)
	}
	return nil
}

// Close disposes the bindings. Published values reset to their empty
// state once the runtime processes the disposal.
func (s *Service) Close() {
	s.teamList.Dispose()
	s.userList.Dispose()
	s.auth.Dispose()
}
