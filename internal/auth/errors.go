package auth

import "errors"

var (
	// ErrUnauthorized covers bad credentials, bad tokens and bad 2FA codes.
	// Deliberately generic so callers cannot tell which factor failed.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden means the caller's role, the whitelist, or the target's
	// validation state denies the action.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrConflict means a uniqueness or state-transition constraint was violated.
	ErrConflict = errors.New("auth: conflict")

	// ErrInvalidInput means a malformed assignment or parameter.
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidState means the actor lacks the region or hospital
	// assignment their role requires.
	ErrInvalidState = errors.New("auth: invalid state")

	// ErrLocked means the account is temporarily disabled after repeated
	// failed logins.
	ErrLocked = errors.New("auth: account locked")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("auth: not found")
)

// ErrInvalidToken indicates a token failed validation.
var ErrInvalidToken = errors.New("invalid token")
