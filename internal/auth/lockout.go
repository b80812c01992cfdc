package auth

import "time"

// Lockout policy: five consecutive failed verifications lock the
// account for fifteen minutes. The lock is advisory, checked as
// now < locked_until; a successful login (including second-factor
// completion) resets the counter and clears the lock.
const (
	lockoutThreshold = 5
	lockoutWindow    = 15 * time.Minute
)

// recordLoginFailure bumps the failure counter and, at the threshold,
// stamps the lock expiry. Returns the mutated fields for persistence.
func recordLoginFailure(id *Identity, now time.Time) (attempts int, lockedUntil *time.Time) {
	id.FailedLoginAttempts++
	if id.FailedLoginAttempts >= lockoutThreshold {
		until := now.Add(lockoutWindow)
		id.LockedUntil = &until
	}
	return id.FailedLoginAttempts, id.LockedUntil
}

// clearLoginFailures resets lockout state after a successful factor.
func clearLoginFailures(id *Identity) {
	id.FailedLoginAttempts = 0
	id.LockedUntil = nil
}
