package localauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/teamsync/internal/backend"
)

// Claims is the ID token payload.
type Claims struct {
	jwt.RegisteredClaims
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"email_verified,omitempty"`
	Picture       string     `json:"picture,omitempty"`
	PhoneNumber   string     `json:"phone_number,omitempty"`
	SignIn        SignInInfo `json:"firebase"`
}

// SignInInfo describes how the principal authenticated.
type SignInInfo struct {
	SignInProvider string `json:"sign_in_provider,omitempty"`
	Tenant         string `json:"tenant,omitempty"`
}

const (
	// ProviderCustom is the sign-in provider of minted dev tokens.
	ProviderCustom = "custom"
	// ProviderAnonymous marks anonymous sessions.
	ProviderAnonymous = "anonymous"
)

// Mint signs claims as an HS256 ID token valid for ttl. Issuer, IssuedAt
// and ExpiresAt are set from cfg.
func Mint(cfg Config, claims Claims, ttl time.Duration) (string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("mint token: subject is required: %w", backend.ErrInvalidArgument)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("mint token: ttl must be positive: %w", backend.ErrInvalidArgument)
	}
	if claims.SignIn.SignInProvider == "" {
		claims.SignIn.SignInProvider = ProviderCustom
	}

	now := cfg.Now().UTC()
	claims.Issuer = cfg.Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return token, nil
}

// verify parses and validates an ID token.
func verify(cfg Config, token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", backend.ErrUnauthenticated)
	}
	return &claims, nil
}

// mapJWTError translates jwt library errors to backend.ErrUnauthenticated
// with a short reason.
func mapJWTError(err error) error {
	reason := "token is invalid"
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = "token is malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		reason = "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		reason = "token algorithm is not accepted"
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = "token is expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		reason = "token is missing a required claim"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = "token issuer mismatch"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		reason = "token used before issued"
	}
	return fmt.Errorf("%w: %s", backend.ErrUnauthenticated, reason)
}
