// Package session implements the persisted session record and the
// idle-timeout watcher.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
)

// Session lifetimes.
const (
	// DefaultTTL is the session lifetime without remember-me.
	DefaultTTL = 24 * time.Hour
	// PersistentTTL is the remember-me session lifetime.
	PersistentTTL = 30 * 24 * time.Hour
	// DefaultIdleTimeout is the inactivity window before forced logout.
	DefaultIdleTimeout = 30 * time.Minute
)

// ErrInvalidRecord indicates a session record that failed signature or
// expiry validation.
var ErrInvalidRecord = errors.New("invalid session record")

// Codec signs the at-rest session record with HS256 so a tampered record in
// the store reads as no-session. The bearer token inside stays an opaque
// random hex string; the signature only protects the stored copy.
type Codec struct {
	signKey []byte
	clock   clockwork.Clock
}

// NewCodec constructs a codec. A nil clock falls back to the real clock.
func NewCodec(signKey []byte, clock clockwork.Clock) *Codec {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Codec{signKey: signKey, clock: clock}
}

type sessionClaims struct {
	Session model.Session `json:"session"`
	jwt.RegisteredClaims
}

// Encode signs the session into its stored form.
func (c *Codec) Encode(s model.Session) (string, error) {
	claims := sessionClaims{
		Session: s,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Email,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.signKey)
}

// Decode validates signature and expiry and returns the session. An expired
// or tampered record yields ErrInvalidRecord.
func (c *Codec) Decode(stored string) (*model.Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
	)
	var claims sessionClaims
	_, err := parser.ParseWithClaims(stored, &claims, func(*jwt.Token) (any, error) {
		return c.signKey, nil
	})
	if err != nil {
		return nil, ErrInvalidRecord
	}
	return &claims.Session, nil
}
