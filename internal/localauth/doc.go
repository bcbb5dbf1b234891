// Package localauth is a development auth provider. It signs principals in
// from HS256 ID tokens, keeps the current session in memory and notifies
// auth-state listeners.
//
// Tokens use the claim layout of hosted ID tokens (sub, name, email,
// picture, firebase.sign_in_provider), so code consuming backend.Principal
// behaves the same against either provider. Mint produces such tokens for
// the CLI and tests.
package localauth
