package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure and carry no infrastructure dependency.

var (
	// Rule engine errors. All are returned before any mutation.
	ErrValidation         = errors.New("invalid input")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrLimitReached       = errors.New("answer reveal limit reached")
	ErrAlreadyActive      = errors.New("power-up already active")

	// Store errors
	ErrNotFound = errors.New("not found")

	// Synchronization errors. Logged at the boundary, never rolled back.
	ErrSyncFailure = errors.New("progress sync failed")

	// Identity errors
	ErrUnauthorized = errors.New("unauthorized")
)

// errorCodes maps sentinels to the stable codes used on the wire and in
// metric labels. Order matters: the first match wins.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation_error"},
	{ErrInsufficientPoints, "insufficient_points"},
	{ErrLimitReached, "limit_reached"},
	{ErrAlreadyActive, "already_active"},
	{ErrNotFound, "not_found"},
	{ErrSyncFailure, "sync_failure"},
	{ErrUnauthorized, "unauthorized"},
}

// ErrorCode returns the stable code for err, or "error" if err wraps no
// known sentinel.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "error"
}

// ErrorForCode is the inverse of ErrorCode. Unknown codes return nil.
func ErrorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
