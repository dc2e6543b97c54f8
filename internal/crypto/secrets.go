// Package crypto implements secret hashing, token generation and random codes.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewToken returns a hex-encoded token backed by n random bytes. Session
// bearer tokens use n >= 32.
func NewToken(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns a random code of the given number of decimal digits,
// zero-padded; used for the mock two-factor challenge.
func NewNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// Hasher digests secrets into a stable string form for storage and comparison.
type Hasher interface {
	// Hash digests the secret.
	Hash(secret string) (string, error)
	// Compare reports whether the secret matches a previously produced digest.
	Compare(secret, digest string) bool
}

// SHA256Hasher produces a hex-encoded SHA-256 digest. It stands in for a
// backend credential check and is not a password KDF.
type SHA256Hasher struct{}

// Hash digests the secret as lowercase hex.
func (SHA256Hasher) Hash(secret string) (string, error) {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:]), nil
}

// Compare rehashes and compares in constant time.
func (h SHA256Hasher) Compare(secret, digest string) bool {
	got, _ := h.Hash(secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// Argon2id parameters (tuned for interactive logins).
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Argon2Hasher produces salted Argon2id digests in the form
// "argon2id$<salt-b64>$<key-b64>". Use it where stored credentials need a
// real KDF instead of the simulation digest.
type Argon2Hasher struct{}

// Hash derives a fresh-salted Argon2id digest.
func (Argon2Hasher) Hash(secret string) (string, error) {
	salt, err := RandBytes(argonSaltLen)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return "argon2id$" +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(key), nil
}

// Compare re-derives the key with the embedded salt and compares in constant time.
func (Argon2Hasher) Compare(secret, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
