package presence

import "errors"

var (
	ErrInvalidDuration = errors.New("busy duration must be between 1 and 1440 minutes")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrNotAdmin        = errors.New("admin role required")
	ErrClosed          = errors.New("board is shut down")
)

// ErrIntegrity is returned when a confirmed write comes back for a different
// record than the one that was requested.
var ErrIntegrity = errors.New("integrity violation: write returned a different record")
