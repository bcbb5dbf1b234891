package backend

import (
	"context"
	"time"
)

// Unsubscribe cancels a listener registration. Calling it more than once
// is a no-op.
type Unsubscribe func()

// UserMetadata carries account timestamps.
type UserMetadata struct {
	CreationTime   time.Time `json:"creationTime"`
	LastSignInTime time.Time `json:"lastSignInTime"`
}

// Principal is the signed-in identity reported by an AuthProvider.
type Principal struct {
	UID           string       `json:"uid"`
	DisplayName   string       `json:"displayName"`
	Email         string       `json:"email"`
	PhoneNumber   string       `json:"phoneNumber"`
	PhotoURL      string       `json:"photoURL"`
	ProviderID    string       `json:"providerId"`
	EmailVerified bool         `json:"emailVerified"`
	IsAnonymous   bool         `json:"isAnonymous"`
	TenantID      string       `json:"tenantId"`
	Metadata      UserMetadata `json:"metadata"`
}

// Clone returns a copy of p, or nil for a nil principal.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// AuthProvider reports authentication state changes.
type AuthProvider interface {
	// OnAuthStateChanged registers fn. fn is called with the current
	// principal (nil when signed out) shortly after registration and then
	// on every sign-in or sign-out. fn may be called on any goroutine.
	OnAuthStateChanged(fn func(*Principal)) Unsubscribe

	// CurrentUser returns the signed-in principal, or nil.
	CurrentUser() *Principal

	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}
