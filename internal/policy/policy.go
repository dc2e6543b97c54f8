// Package policy implements validation rules for emails and secret strength.
package policy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
)

var emailShape = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// disposableDomains are rejected outright to keep throwaway accounts out.
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
}

// commonPatterns drag the strength score down when present anywhere in a secret.
var commonPatterns = []string{"123456", "password", "qwerty", "abc123", "111111"}

// NormalizeEmail lowercases and trims an identifier before any use.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks address shape and the disposable-domain denylist.
// The input is expected to be normalized already.
func ValidateEmail(email string) error {
	if email == "" || !emailShape.MatchString(email) {
		return errs.ErrInvalidEmail
	}
	at := strings.LastIndex(email, "@")
	if disposableDomains[email[at+1:]] {
		return errs.ErrInvalidEmail
	}
	return nil
}

// Strength is the outcome of scoring a candidate secret.
type Strength struct {
	Score    int
	Level    string
	Feedback []string
}

// Valid reports whether the secret passes the policy: the numeric bar alone is
// not sufficient while any specific complaint remains.
func (s Strength) Valid() bool { return s.Score >= 4 && len(s.Feedback) == 0 }

var strengthLevels = []string{"Very Weak", "Weak", "Weak", "Fair", "Good", "Strong", "Very Strong"}

// CheckSecret scores a candidate secret and collects feedback for every
// unmet rule.
func CheckSecret(secret string) Strength {
	var st Strength

	switch {
	case len(secret) < 8:
		st.Feedback = append(st.Feedback, "Password must be at least 8 characters")
	case len(secret) >= 12:
		st.Score += 2
	default:
		st.Score++
	}

	var upper, lower, digit, symbol bool
	for _, r := range secret {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if upper {
		st.Score++
	} else {
		st.Feedback = append(st.Feedback, "Include at least one uppercase letter")
	}
	if lower {
		st.Score++
	} else {
		st.Feedback = append(st.Feedback, "Include at least one lowercase letter")
	}
	if digit {
		st.Score++
	} else {
		st.Feedback = append(st.Feedback, "Include at least one number")
	}
	if symbol {
		st.Score++
	} else {
		st.Feedback = append(st.Feedback, "Include at least one special character")
	}

	low := strings.ToLower(secret)
	for _, p := range commonPatterns {
		if strings.Contains(low, p) {
			st.Feedback = append(st.Feedback, "Avoid common patterns")
			st.Score -= 2
			break
		}
	}

	lvl := st.Score
	if lvl < 0 {
		lvl = 0
	}
	if lvl >= len(strengthLevels) {
		lvl = len(strengthLevels) - 1
	}
	st.Level = strengthLevels[lvl]
	return st
}

// RequireStrong converts a failed check into a WeakSecretError.
func RequireStrong(secret string) error {
	st := CheckSecret(secret)
	if st.Valid() {
		return nil
	}
	fb := st.Feedback
	if len(fb) == 0 {
		fb = []string{"Password is too predictable"}
	}
	return &errs.WeakSecretError{Feedback: fb}
}
