package reactive

import (
	"errors"
	"fmt"
)

// ProviderError wraps a failure reported by an external provider
// (subscribe, read, write, or decode) with the binding context it hit.
// The cause is reachable with errors.Is / errors.As.
type ProviderError struct {
	// Binding is the debug name of the binding that received the error.
	Binding string

	// Op is the provider operation that failed ("listen", "decode", "set").
	Op string

	// Path identifies the document or query, if known.
	Path string

	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MisuseError reports a broken internal contract, such as a computation
// settling for a subscription the binding is not tracking. It is raised
// with panic: it indicates a bug, not a runtime condition.
type MisuseError struct {
	Binding string
	Message string
}

// Error implements the error interface.
func (e *MisuseError) Error() string {
	if e.Binding != "" {
		return fmt.Sprintf("reactive misuse (%s): %s", e.Binding, e.Message)
	}
	return "reactive misuse: " + e.Message
}

// IsProviderError returns true if err wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
