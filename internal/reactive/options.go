package reactive

import (
	"log/slog"

	"github.com/roach88/teamsync/internal/backend"
)

// Option configures a binding.
type Option func(*settings)

type settings struct {
	name    string
	onError func(error)
	deps    []Observable
	listen  backend.ListenOptions
}

func newSettings(defaultName string, opts []Option) settings {
	s := settings{name: defaultName}
	for _, opt := range opts {
		opt(&s)
	}
	if s.onError == nil {
		name := s.name
		s.onError = func(err error) {
			slog.Error("binding error", "binding", name, "error", err)
		}
	}
	return s
}

// WithName sets the debug name used in logs and errors.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithErrorHandler routes provider errors to fn instead of the default
// slog.Error. fn runs on the runtime goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) {
		s.onError = fn
	}
}

// WithDependencies re-evaluates the binding's source whenever any of deps
// publishes. This is the explicit replacement for automatic dependency
// tracking.
func WithDependencies(deps ...Observable) Option {
	return func(s *settings) {
		s.deps = append(s.deps, deps...)
	}
}

// WithMetadataChanges subscribes with IncludeMetadataChanges and publishes
// snapshot metadata alongside the data.
func WithMetadataChanges() Option {
	return func(s *settings) {
		s.listen.IncludeMetadataChanges = true
	}
}
