package localauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/teamsync/internal/backend"
)

// Config configures token verification and minting.
type Config struct {
	// Secret is the HS256 key. Required.
	Secret []byte

	// Issuer is written by Mint and required by SignIn.
	Issuer string

	// Now is the wall clock used for expiry. Defaults to time.Now.
	Now func() time.Time

	// NewUID generates anonymous UIDs. Defaults to random UUIDs.
	NewUID func() string
}

func (c Config) withDefaults() Config {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewUID == nil {
		c.NewUID = uuid.NewString
	}
	return c
}

func (c Config) validate() error {
	if len(c.Secret) == 0 {
		return errors.New("localauth: secret is required")
	}
	if c.Issuer == "" {
		return errors.New("localauth: issuer is required")
	}
	return nil
}

type authListener struct {
	id int
	fn func(*backend.Principal)
}

// Provider implements backend.AuthProvider with an in-memory session.
//
// Thread-safety: all methods are safe for concurrent use. Listeners are
// called in registration order, one notification at a time, and must not
// call back into the provider synchronously.
type Provider struct {
	cfg Config

	// notifyMu serializes state changes with their notifications so every
	// listener sees changes in the same order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *backend.Principal
	created   map[string]time.Time
	listeners []authListener
	nextID    int
}

// New creates a signed-out provider. It fails if cfg has no secret or
// issuer.
func New(cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{
		cfg:     cfg,
		created: make(map[string]time.Time),
	}, nil
}

// OnAuthStateChanged calls fn with the current principal right away, then
// on every sign-in and sign-out.
func (p *Provider) OnAuthStateChanged(fn func(*backend.Principal)) backend.Unsubscribe {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, authListener{id: id, fn: fn})
	current := p.current.Clone()
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.listeners {
				if l.id == id {
					p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// CurrentUser returns a copy of the signed-in principal, or nil.
func (p *Provider) CurrentUser() *backend.Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// SignIn verifies idToken and makes its subject the current principal.
// Errors wrap backend.ErrUnauthenticated.
func (p *Provider) SignIn(ctx context.Context, idToken string) (*backend.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	claims, err := verify(p.cfg, idToken)
	if err != nil {
		slog.Debug("sign in rejected", "error", err)
		return nil, fmt.Errorf("sign in: %w", err)
	}

	principal := &backend.Principal{
		UID:           claims.Subject,
		DisplayName:   claims.Name,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		PhoneNumber:   claims.PhoneNumber,
		PhotoURL:      claims.Picture,
		ProviderID:    claims.SignIn.SignInProvider,
		IsAnonymous:   claims.SignIn.SignInProvider == ProviderAnonymous,
		TenantID:      claims.SignIn.Tenant,
	}
	p.setCurrent(principal)
	slog.Debug("signed in", "uid", principal.UID, "provider", principal.ProviderID)
	return principal.Clone(), nil
}

// SignInAnonymously starts a session for a fresh anonymous principal.
func (p *Provider) SignInAnonymously(ctx context.Context) (*backend.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	principal := &backend.Principal{
		UID:         p.cfg.NewUID(),
		ProviderID:  ProviderAnonymous,
		IsAnonymous: true,
	}
	p.setCurrent(principal)
	slog.Debug("signed in anonymously", "uid", principal.UID)
	return principal.Clone(), nil
}

// SignOut ends the current session. Signing out while signed out is a
// no-op and notifies nobody.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return nil
	}
	uid := p.current.UID
	p.current = nil
	listeners := append([]authListener(nil), p.listeners...)
	p.mu.Unlock()

	slog.Debug("signed out", "uid", uid)
	for _, l := range listeners {
		l.fn(nil)
	}
	return nil
}

func (p *Provider) setCurrent(principal *backend.Principal) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	now := p.cfg.Now().UTC()

	p.mu.Lock()
	created, ok := p.created[principal.UID]
	if !ok {
		created = now
		p.created[principal.UID] = created
	}
	principal.Metadata = backend.UserMetadata{CreationTime: created, LastSignInTime: now}
	p.current = principal.Clone()
	listeners := append([]authListener(nil), p.listeners...)
	p.mu.Unlock()

	for _, l := range listeners {
		l.fn(principal.Clone())
	}
}
