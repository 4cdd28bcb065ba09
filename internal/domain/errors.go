package domain

import "errors"

// Domain errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrStatsNotFound   = errors.New("stats record not found")
	ErrBadgesNotFound  = errors.New("badge list not found")
	ErrInvalidProfile  = errors.New("profile record has no user identifier")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)

// IsNotFound reports whether an error means "record absent" rather than a
// transport failure. Callers use this to pick the next fallback strategy
// instead of retrying the same source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrStatsNotFound) ||
		errors.Is(err, ErrBadgesNotFound)
}
