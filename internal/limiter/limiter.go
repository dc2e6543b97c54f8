// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import "time"

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	// Allowed reports whether the attempt may proceed.
	Allowed bool
	// AttemptsLeft is the remaining budget within the window after this attempt.
	AttemptsLeft int
	// RetryAfter is the remaining cooldown when the attempt is denied.
	RetryAfter time.Duration
}

// Limiter controls login attempts per identifier within a trailing window.
type Limiter interface {
	// Allow checks the identifier's budget and, when allowed, records the attempt.
	Allow(identifier string) Decision
	// Reset clears the identifier's ledger (successful login, manual flag clearing).
	Reset(identifier string)
}
