package backend

import "errors"

// Provider error sentinels. Implementations wrap these so callers can
// branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrClosed           = errors.New("provider closed")
)
