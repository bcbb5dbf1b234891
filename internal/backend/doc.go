// Package backend defines the contracts of the hosted document-store and
// auth provider that the reactive adapters consume.
//
// Nothing in this package talks to a network. Implementations live
// elsewhere: localstore and localauth for development and tests, or a
// client for a hosted service.
package backend
