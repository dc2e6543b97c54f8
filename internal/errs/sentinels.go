// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common sentinels across repository/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials indicates failed credential verification.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidEmail indicates a malformed or disallowed email address.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrIncorrectSecret indicates the supplied current secret does not match the stored one.
	ErrIncorrectSecret = errors.New("current secret is incorrect")

	// ErrInvalidCode indicates a failed two-factor code check.
	ErrInvalidCode = errors.New("invalid two-factor code")

	// ErrNoPendingLogin indicates two-factor verification without a pending login.
	ErrNoPendingLogin = errors.New("no pending login")

	// ErrRateLimited indicates a temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrSuspiciousActivity indicates the suspicious-activity heuristic fired.
	ErrSuspiciousActivity = errors.New("suspicious activity")

	// ErrWeakSecret indicates the secret does not meet the strength policy.
	ErrWeakSecret = errors.New("weak secret")

	// ErrQuotaExceeded indicates a rejected write that would exceed the storage ceiling.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageUnavailable indicates the persistence backend cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// RateLimitError carries the remaining cooldown for a rate-limited identifier.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry in %d minutes", e.RemainingMinutes())
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// RemainingMinutes reports the cooldown rounded up to whole minutes, never below 1.
func (e *RateLimitError) RemainingMinutes() int {
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// WeakSecretError carries per-rule feedback from the strength policy.
type WeakSecretError struct {
	Feedback []string
}

func (e *WeakSecretError) Error() string {
	return "weak secret: " + strings.Join(e.Feedback, "; ")
}

// Is makes errors.Is(err, ErrWeakSecret) match.
func (e *WeakSecretError) Is(target error) bool { return target == ErrWeakSecret }

// SuspiciousActivityError carries the heuristic's reason.
type SuspiciousActivityError struct {
	Reason string
}

func (e *SuspiciousActivityError) Error() string {
	return "suspicious activity: " + e.Reason
}

// Is makes errors.Is(err, ErrSuspiciousActivity) match.
func (e *SuspiciousActivityError) Is(target error) bool { return target == ErrSuspiciousActivity }
